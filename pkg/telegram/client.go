package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"invoice-collector-be/pkg/resilience"
)

// Client talks to the Telegram Bot API. Send failures come back as
// structured dependency errors so the retry engine can tell a rate
// limit from a dead network.
type Client struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		BaseURL: "https://api.telegram.org",
		Token:   token,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// SendMessage delivers a Markdown-formatted text reply.
func (c *Client) SendMessage(ctx context.Context, chatId, text string) error {
	payload := map[string]interface{}{
		"chat_id":    chatId,
		"text":       text,
		"parse_mode": "Markdown",
	}
	_, err := c.call(ctx, "sendMessage", payload)
	return err
}

// SendDocument uploads a rendered invoice file to the chat.
func (c *Client) SendDocument(ctx context.Context, chatId, fileName string, content []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", chatId); err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	part, err := w.CreateFormFile("document", fileName)
	if err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendDocument", c.BaseURL, c.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return resilience.NewDependencyError("telegram", resilience.KindBadRequest, 0, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	_, err = c.do(req)
	return err
}

type fileInfo struct {
	FilePath string `json:"file_path"`
}

// DownloadFile fetches an uploaded document's bytes by file id.
func (c *Client) DownloadFile(ctx context.Context, fileId string) ([]byte, error) {
	raw, err := c.call(ctx, "getFile", map[string]interface{}{"file_id": fileId})
	if err != nil {
		return nil, err
	}
	var info fileInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, resilience.NewDependencyError("telegram", resilience.KindUnknown, 0,
			fmt.Errorf("malformed getFile response: %w", err))
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", c.BaseURL, c.Token, info.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, resilience.NewDependencyError("telegram", resilience.KindBadRequest, 0, err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewDependencyError("telegram", resilience.KindUnknown, resp.StatusCode,
			fmt.Errorf("file download returned %s", resp.Status))
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, resilience.NewDependencyError("telegram", resilience.KindBadRequest, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, c.transportError(req.Context(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewDependencyError("telegram", resilience.KindNetwork, 0, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, resilience.NewDependencyError("telegram", resilience.KindUnknown, resp.StatusCode,
			fmt.Errorf("malformed bot api response: %w", err))
	}
	if !parsed.Ok {
		kind := resilience.KindUnknown
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = resilience.KindRateLimit
		}
		return nil, resilience.NewDependencyError("telegram", kind, resp.StatusCode,
			errors.New(parsed.Description))
	}
	return parsed.Result, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	kind := resilience.KindNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = resilience.KindTimeout
	}
	return resilience.NewDependencyError("telegram", kind, 0, err)
}
