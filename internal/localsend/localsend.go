package localsend

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/localsend/constants"
	"github.com/0w0mewo/localsend-engine/internal/models"
	"github.com/gofiber/fiber/v2"
)

// GetDeviceInfo asks the device at ip:port who it is by registering local
// with it. The certificate is not checked here; callers pin the returned
// fingerprint for everything that follows.
func GetDeviceInfo(local models.SenderInfo, ip string, port int, https bool) (models.SenderInfo, error) {
	remoteAddr := net.JoinHostPort(ip, strconv.Itoa(port))

	// released by Bytes
	agent := fiber.AcquireAgent()

	scheme := models.ProtocolHTTP
	if https {
		scheme = models.ProtocolHTTPS
	}

	req := agent.Request()
	req.URI().SetScheme(scheme)
	req.URI().SetHost(remoteAddr)
	req.URI().SetPath(constants.RegisterPath)
	req.Header.SetMethod(fiber.MethodPost)
	err := agent.Parse()
	if err != nil {
		fiber.ReleaseAgent(agent)
		return models.SenderInfo{}, err
	}

	status, b, errs := agent.InsecureSkipVerify().Timeout(5 * time.Second).JSON(&local).Bytes()
	if len(errs) != 0 {
		return models.SenderInfo{}, fmt.Errorf("%w: %v", constants.ErrPeerUnreachable, errs[0])
	}
	err = constants.ParseError(status)
	if err != nil {
		return models.SenderInfo{}, err
	}

	var res models.DeviceInfo
	err = json.Unmarshal(b, &res)
	if err != nil {
		return models.SenderInfo{}, err
	}
	res.IP = ip

	return models.SenderInfo{
		DeviceInfo: res,
		Port:       port,
		Protocol:   scheme,
	}, nil
}
