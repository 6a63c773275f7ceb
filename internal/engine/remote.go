package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RemoteConfig configures an engine backed by an OpenAI-compatible
// completion server.
type RemoteConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// Stream requests server-sent events instead of a single JSON body.
	Stream bool
	Logger *zerolog.Logger
}

// Remote talks to a running completion server. Loading an artifact means
// confirming the server can serve it; the server owns the weights.
type Remote struct {
	cfg        RemoteConfig
	httpClient *http.Client
	log        zerolog.Logger
}

// NewRemote constructs a server-backed engine.
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	lg := zerolog.Nop()
	if cfg.Logger != nil {
		lg = *cfg.Logger
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	// Deadlines come from request contexts.
	return &Remote{cfg: cfg, httpClient: &http.Client{Transport: tr}, log: lg}
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Load checks that the server is reachable and, when it lists its models,
// that artifactID is among them.
func (r *Remote) Load(ctx context.Context, artifactID string) (Handle, error) {
	if strings.TrimSpace(artifactID) == "" {
		return nil, errors.New("artifact id is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	r.authorize(req)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("completion server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion server http error: %s: %s", resp.Status, string(b))
	}
	var models modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	if len(models.Data) > 0 {
		found := false
		for _, m := range models.Data {
			if m.ID == artifactID {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrArtifactNotFound(artifactID)
		}
	}
	return &remoteHandle{engine: r, modelID: artifactID}, nil
}

func (r *Remote) authorize(req *http.Request) {
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}
}

type remoteHandle struct {
	engine  *Remote
	modelID string
}

type completionRequest struct {
	Model         string   `json:"model,omitempty"`
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float32  `json:"temperature,omitempty"`
	TopP          float32  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Seed          int      `json:"seed,omitempty"`
	Stream        bool     `json:"stream"`
	RepeatPenalty float32  `json:"repeat_penalty,omitempty"`
}

type completionChoice struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
}

func (c completionChoice) fragment() string {
	if c.Text != "" {
		return c.Text
	}
	return c.Delta.Content
}

func (h *remoteHandle) Run(ctx context.Context, req Request) (string, error) {
	e := h.engine
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}
	p := req.Params
	payload := completionRequest{
		Model:         h.modelID,
		Prompt:        FormatPrompt(req.SystemPrompt, req.Input),
		MaxTokens:     p.MaxTokens,
		Temperature:   p.Temperature,
		TopP:          p.TopP,
		TopK:          p.TopK,
		Stop:          p.Stop,
		Seed:          p.Seed,
		Stream:        e.cfg.Stream,
		RepeatPenalty: p.RepeatPenalty,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")
	e.authorize(hreq)
	resp, err := e.httpClient.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion server http error: %s: %s", resp.Status, string(b))
	}
	if !e.cfg.Stream {
		var out completionResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode completion: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", errors.New("completion server returned no choices")
		}
		return out.Choices[0].fragment(), nil
	}
	return h.readStream(ctx, resp.Body)
}

// readStream concatenates fragments from a server-sent event stream.
func (h *remoteHandle) readStream(ctx context.Context, body io.Reader) (string, error) {
	var sb strings.Builder
	rd := bufio.NewReader(body)
	for {
		line, err := rd.ReadString('\n')
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), "data:") {
			data := strings.TrimSpace(line[len("data:"):])
			if data == "[DONE]" {
				return sb.String(), nil
			}
			var msg completionResponse
			if jerr := json.Unmarshal([]byte(data), &msg); jerr == nil && len(msg.Choices) > 0 {
				sb.WriteString(msg.Choices[0].fragment())
			} else {
				h.engine.log.Debug().Str("line", line).Msg("unknown stream line")
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}
			if ctx.Err() != nil {
				return sb.String(), ctx.Err()
			}
			return sb.String(), err
		}
	}
}

func (h *remoteHandle) Close() error { return nil }
