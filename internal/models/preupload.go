package models

type PreUploadReq struct {
	Info  *SenderInfo `json:"info"`
	Files FileMetas   `json:"files"`
}

type PreDownloadReq struct {
	Info *SenderInfo `json:"info,omitempty"`
}

type PreDownloadResp struct {
	Info      *SenderInfo `json:"info"`
	SessionId string      `json:"sessionId"`
	Files     FileMetas   `json:"files"`
}

func NewPreDownloadResp(sessionId string) *PreDownloadResp {
	return &PreDownloadResp{
		SessionId: sessionId,
		Files:     make(FileMetas),
	}
}

type FileMetas map[string]FileMeta

type PreUploadResp struct {
	SessionId string     `json:"sessionId"`
	Tokens    FileTokens `json:"files"`
}

func NewPreUploadResp(sessionId string) *PreUploadResp {
	return &PreUploadResp{
		SessionId: sessionId,
		Tokens:    make(FileTokens),
	}
}

func (resp *PreUploadResp) AddFile(fileId string, token string) {
	resp.Tokens[fileId] = token
}

type FileTokens map[string]string
