package send

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/crypto"
	"github.com/0w0mewo/localsend-engine/internal/localsend/constants"
	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	"github.com/0w0mewo/localsend-engine/internal/models"
	"github.com/0w0mewo/localsend-engine/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// FileResult is the outcome for one offered file. Accepted is false when the
// peer declined the file; Err is set when an accepted file failed to upload.
type FileResult struct {
	Meta     models.FileMeta
	Accepted bool
	Err      error
}

// Report summarizes one transfer. Declined means the peer accepted none of
// the files, which is not an error.
type Report struct {
	SessionId string
	Declined  bool
	Files     []FileResult
}

func (r *Report) Sent() int {
	n := 0
	for _, f := range r.Files {
		if f.Accepted && f.Err == nil {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// ForwardSender pushes files to a peer through prepare-upload and upload.
type ForwardSender struct {
	baseSender
	local  models.SenderInfo
	remote models.SenderInfo

	sessMu sync.Mutex
	sessId string
	abort  atomic.Bool
}

func NewForwardSender(local models.SenderInfo) *ForwardSender {
	return &ForwardSender{
		baseSender: newBaseSender(),
		local:      local,
	}
}

// Init targets a peer and clears any queued files. target.IP must be set.
func (fsp *ForwardSender) Init(target models.SenderInfo) error {
	if target.IP == "" {
		return errors.New("target has no address")
	}
	if target.Port == 0 {
		target.Port = constants.DefaultPort
	}

	fsp.abort.Store(false)
	fsp.setSession("")
	fsp.remote = target

	fsp.reset()

	return nil
}

func (fsp *ForwardSender) setSession(id string) {
	fsp.sessMu.Lock()
	defer fsp.sessMu.Unlock()

	fsp.sessId = id
}

func (fsp *ForwardSender) sessionId() string {
	fsp.sessMu.Lock()
	defer fsp.sessMu.Unlock()

	return fsp.sessId
}

func (fsp *ForwardSender) https() bool {
	return fsp.remote.Protocol != models.ProtocolHTTP
}

func (fsp *ForwardSender) remoteAddr() string {
	return net.JoinHostPort(fsp.remote.IP, strconv.Itoa(fsp.remote.Port))
}

// verifyPeer makes sure the certificate the peer presents belongs to the
// fingerprint it announced (See https://github.com/localsend/protocol section.2).
func (fsp *ForwardSender) verifyPeer() error {
	if !fsp.https() || fsp.remote.Fingerprint == "" {
		return nil
	}

	certs, err := utils.FetchX509Cert(fsp.remoteAddr())
	if err != nil {
		return fmt.Errorf("%w: %v", constants.ErrPeerUnreachable, err)
	}
	if len(certs) == 0 || !strings.EqualFold(crypto.FingerprintFromCert(certs[0]), fsp.remote.Fingerprint) {
		return constants.ErrFingerprint
	}

	return nil
}

// tlsConfig pins every connection to the announced fingerprint.
func (fsp *ForwardSender) tlsConfig() *tls.Config {
	fingerprint := fsp.remote.Fingerprint

	return &tls.Config{
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if fingerprint == "" {
				return nil
			}
			if len(rawCerts) == 0 || !strings.EqualFold(crypto.FingerprintFromCertDER(rawCerts[0]), fingerprint) {
				return constants.ErrFingerprint
			}
			return nil
		},
	}
}

func (fsp *ForwardSender) newAgent(path string, query ...string) (*fiber.Agent, error) {
	agent := fiber.AcquireAgent()

	req := agent.Request()
	fsp.prepareUri(req, path)
	req.Header.SetMethod(fiber.MethodPost)
	for i := 0; i+1 < len(query); i += 2 {
		req.URI().QueryArgs().Add(query[i], query[i+1])
	}

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, err
	}

	if fsp.https() {
		agent.TLSConfig(fsp.tlsConfig())
	}
	return agent, nil
}

func (fsp *ForwardSender) preUploadReq(files models.FileMetas) (*models.PreUploadResp, error) {
	var query []string
	if fsp.pin != "" {
		query = append(query, "pin", fsp.pin)
	}

	agent, err := fsp.newAgent(constants.PreuploadPath, query...)
	if err != nil {
		return nil, err
	}

	meta := models.PreUploadReq{
		Info:  &fsp.local,
		Files: files,
	}

	// no timeout: the peer may be asking its user.
	// Bytes hands the agent back to the pool.
	status, b, errs := agent.JSON(&meta).Bytes()
	if len(errs) != 0 {
		return nil, fmt.Errorf("%w: %v", constants.ErrPeerUnreachable, errs[0])
	}

	if err := constants.ParseError(status); err != nil {
		return nil, err
	}

	var respMeta models.PreUploadResp
	if err := json.Unmarshal(b, &respMeta); err != nil {
		return nil, fmt.Errorf("%w: %v", constants.ErrInvalidBody, err)
	}

	return &respMeta, nil
}

func (fsp *ForwardSender) sendFile(sessionId string, meta models.FileMeta, token string, src session.Source) error {
	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", constants.ErrFileIO, err)
	}
	defer rc.Close()

	agent, err := fsp.newAgent(constants.UploadPath, "sessionId", sessionId, "fileId", meta.Id, "token", token)
	if err != nil {
		return err
	}

	status, _, errs := agent.BodyStream(rc, int(meta.Size)).Bytes()
	if len(errs) != 0 {
		return fmt.Errorf("%w: %v", constants.ErrPeerUnreachable, errs[0])
	}

	return constants.ParseError(status)
}

// Send offers every queued file and uploads the accepted ones concurrently.
// A failed file does not stop the others; its error is in the report.
func (fsp *ForwardSender) Send(ctx context.Context) (*Report, error) {
	files, sources := fsp.snapshot()
	if len(files) == 0 {
		return nil, errors.New("no file to send")
	}

	if err := fsp.verifyPeer(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(files))
	for id := range files {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return files[ids[i]].Filename < files[ids[j]].Filename })

	report := &Report{Files: make([]FileResult, len(ids))}
	for i, id := range ids {
		report.Files[i].Meta = files[id]
	}

	resp, err := fsp.preUploadReq(files)
	if errors.Is(err, constants.ErrAllRejected) {
		slog.Info("Peer declined every file", "remote", fsp.remote.Alias)
		report.Declined = true
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prepare upload: %w", err)
	}

	fsp.setSession(resp.SessionId)
	report.SessionId = resp.SessionId

	accepted := make([]int, 0, len(resp.Tokens))
	for i := range report.Files {
		if _, ok := resp.Tokens[report.Files[i].Meta.Id]; ok {
			report.Files[i].Accepted = true
			accepted = append(accepted, i)
		}
	}

	var wg sync.WaitGroup
	utils.ForEachAsync(accepted, &wg, func(i int) {
		res := &report.Files[i]
		if ctx.Err() != nil || fsp.abort.Load() {
			res.Err = constants.ErrCancelled
			return
		}

		res.Err = fsp.sendFile(resp.SessionId, res.Meta, resp.Tokens[res.Meta.Id], sources[res.Meta.Id])
		if res.Err != nil {
			slog.Error("Fail to send file", "file", res.Meta.Filename, "error", res.Err)
			return
		}
		slog.Info("File sent", "file", res.Meta.Filename)
	})
	wg.Wait()

	return report, nil
}

func (fsp *ForwardSender) Start(ctx context.Context) error {
	report, err := fsp.Send(ctx)
	if err != nil {
		return err
	}

	slog.Info("Done", "sent", report.Sent(), "failed", report.Failed(), "declined", len(report.Files)-report.Sent()-report.Failed())
	return nil
}

// Cancel stops the files not yet started and asks the peer to end the
// session.
func (fsp *ForwardSender) Cancel() error {
	fsp.abort.Store(true)

	sessionId := fsp.sessionId()
	if sessionId == "" {
		return nil
	}

	agent, err := fsp.newAgent(constants.CancelPath, "sessionId", sessionId, "fingerprint", fsp.local.Fingerprint)
	if err != nil {
		return err
	}

	status, _, errs := agent.Timeout(5 * time.Second).Bytes()
	if len(errs) != 0 {
		return fmt.Errorf("%w: %v", constants.ErrPeerUnreachable, errs[0])
	}

	return constants.ParseError(status)
}

func (fsp *ForwardSender) prepareUri(req *fasthttp.Request, path string) {
	req.Header.SetUserAgent("localsend-engine")
	req.URI().SetPath(path)
	if fsp.https() {
		req.URI().SetScheme("https")
	} else {
		req.URI().SetScheme("http")
	}
	req.URI().SetHost(fsp.remoteAddr())
}
