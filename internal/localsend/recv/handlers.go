package recv

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/0w0mewo/localsend-engine/internal/localsend"
	"github.com/0w0mewo/localsend-engine/internal/localsend/constants"
	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	"github.com/0w0mewo/localsend-engine/internal/models"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

// remoteIP copies the address; strings in fiber are only valid inside the handler.
func remoteIP(c *fiber.Ctx) string {
	return fiberutils.CopyString(c.IP())
}

func (fr *FileReceiver) checkPIN(c *fiber.Ctx) bool {
	return fr.expectedPin == "" || c.Query("pin") == fr.expectedPin
}

func sendError(c *fiber.Ctx, err error) error {
	return c.SendStatus(constants.Status(err))
}

func (fr *FileReceiver) registerHandler(c *fiber.Ctx) error {
	var remote models.SenderInfo
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&remote); err != nil {
			return sendError(c, constants.ErrInvalidBody)
		}
	}

	if fr.discoverier != nil && remote.Fingerprint != "" {
		fr.discoverier.Upsert(localsend.PeerRecord{
			Announcement: models.Announcement{
				DeviceInfo: remote.DeviceInfo,
				Port:       remote.Port,
				Protocol:   remote.Protocol,
			},
			IP:     remoteIP(c),
			Source: localsend.SourceRegister,
		})
	}

	return c.JSON(fr.identity.Info())
}

func (fr *FileReceiver) infoHandler(c *fiber.Ctx) error {
	return c.JSON(fr.identity.Info())
}

func (fr *FileReceiver) preUploadHandler(c *fiber.Ctx) error {
	if !fr.checkPIN(c) {
		return sendError(c, constants.ErrInvalidPIN)
	}

	var metaReq models.PreUploadReq
	if err := c.BodyParser(&metaReq); err != nil || metaReq.Info == nil {
		return sendError(c, constants.ErrInvalidBody)
	}

	peer := session.PeerFromSender(metaReq.Info, remoteIP(c))

	resp, err := fr.sessman.BeginNegotiation(c.UserContext(), peer, metaReq.Files)
	if err != nil {
		if errors.Is(err, constants.ErrAllRejected) {
			slog.Info("Rejected every file", "remote", peer.Alias, "ip", peer.Addr)
		} else {
			slog.Error("Preupload error", "remote", peer.Alias, "error", err)
		}
		return sendError(c, err)
	}

	slog.Info("Accepting file", "remote", peer.Alias, "ip", peer.Addr, "session", resp.SessionId, "files", len(resp.Tokens))
	return c.JSON(resp)
}

func (fr *FileReceiver) uploadHandler(c *fiber.Ctx) error {
	sessionId := c.Query("sessionId")
	fileId := c.Query("fileId")
	token := c.Query("token")

	if sessionId == "" || fileId == "" || token == "" {
		return sendError(c, constants.ErrInvalidBody)
	}

	var body io.Reader = c.Context().RequestBodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}

	err := fr.sessman.AcceptUpload(c.UserContext(), sessionId, fileId, token, body)
	if err != nil {
		slog.Error("Upload error", "ip", c.IP(), "session", sessionId, "error", err)
		return sendError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (fr *FileReceiver) cancelHandler(c *fiber.Ctx) error {
	sessionId := c.Query("sessionId")
	if sessionId == "" {
		return sendError(c, constants.ErrInvalidBody)
	}

	requester := session.Peer{
		Fingerprint: c.Query("fingerprint"),
		Addr:        remoteIP(c),
	}

	if err := fr.sessman.Cancel(sessionId, requester); err != nil {
		return sendError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (fr *FileReceiver) preDownloadHandler(c *fiber.Ctx) error {
	if !fr.checkPIN(c) {
		return sendError(c, constants.ErrInvalidPIN)
	}

	var req models.PreDownloadReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return sendError(c, constants.ErrInvalidBody)
		}
	}

	shared := fr.sharedFiles()
	if len(shared) == 0 {
		return sendError(c, constants.ErrAllRejected)
	}

	peer := session.PeerFromSender(req.Info, remoteIP(c))

	resp, err := fr.sessman.BeginShare(peer, shared)
	if err != nil {
		return sendError(c, err)
	}

	self := fr.identity.Sender()
	resp.Info = &self

	slog.Info("Sharing files", "ip", peer.Addr, "session", resp.SessionId, "files", len(resp.Files))
	return c.JSON(resp)
}

func (fr *FileReceiver) downloadHandler(c *fiber.Ctx) error {
	sessionId := c.Query("sessionId")
	fileId := c.Query("fileId")
	token := c.Query("token")

	if sessionId == "" || fileId == "" || token == "" {
		return sendError(c, constants.ErrInvalidBody)
	}

	file, err := fr.sessman.ClaimDownload(sessionId, fileId, token)
	if err != nil {
		return sendError(c, err)
	}

	c.Set(fiber.HeaderContentType, file.Meta.FileMIME)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(file.Meta.Filename)))

	ip, sid := remoteIP(c), fiberutils.CopyString(sessionId)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := file.Stream(context.Background(), w); err != nil {
			slog.Error("Download error", "ip", ip, "session", sid, "error", err)
		}
		w.Flush()
	})

	return nil
}
