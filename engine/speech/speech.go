// Package speech is the text-to-speech client and a decoder for the raw
// 16-bit PCM it returns.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Defaults for the backend's voice output.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
)

var (
	ErrEmptyText = errors.New("speech: empty text")
	ErrNoAudio   = errors.New("speech: response carried no audio")
	ErrOddLength = errors.New("speech: PCM byte count is not a whole number of frames")
	ErrBadFormat = errors.New("speech: sample rate and channels must be positive")
)

// Client calls the backend's speech endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a speech client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type speakReq struct {
	Text string `json:"text"`
}

type speakResp struct {
	AudioData string `json:"audio_data"`
}

// Speak returns the base64 PCM for text. It tries /api/speak and falls back
// to /api/tts when the former is not found.
func (c *Client) Speak(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	audio, status, err := c.post(ctx, "/api/speak", text)
	if status == http.StatusNotFound {
		audio, _, err = c.post(ctx, "/api/tts", text)
	}
	return audio, err
}

func (c *Client) post(ctx context.Context, path, text string) (string, int, error) {
	body, err := json.Marshal(speakReq{Text: text})
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("speech %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", resp.StatusCode, fmt.Errorf("speech %s: status %d", path, resp.StatusCode)
	}
	var out speakResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resp.StatusCode, fmt.Errorf("speech %s decode: %w", path, err)
	}
	if out.AudioData == "" {
		return "", resp.StatusCode, ErrNoAudio
	}
	return out.AudioData, resp.StatusCode, nil
}

// Buffer is decoded PCM, one float32 slice per channel in [-1, 1).
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// DecodePCM decodes base64 little-endian interleaved 16-bit PCM.
func DecodePCM(b64 string, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, ErrBadFormat
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("speech: decode base64: %w", err)
	}
	frameBytes := 2 * channels
	if len(raw)%frameBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes, %d channels", ErrOddLength, len(raw), channels)
	}
	frames := len(raw) / frameBytes
	buf := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			s := int16(binary.LittleEndian.Uint16(raw[off:]))
			buf.Channels[ch][i] = float32(s) / 32768
		}
	}
	return buf, nil
}
