package deepgram

import (
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultURL      = "wss://api.deepgram.com/v1/listen"
	DefaultModel    = "nova-3"
	DefaultLanguage = "en-US"

	apiKeyEnv = "DEEPGRAM_API_KEY"
)

// TranscriptionClient streams capture audio to Deepgram and reports
// transcripts back. The session uses it to spot stop keywords faster than
// the model's own input transcription.
type TranscriptionClient struct {
	apiKey   string
	url      string
	model    string
	language string
	keyterms []string
	dialer   *websocket.Dialer

	connMu    sync.Mutex
	conn      *websocket.Conn
	lastMsgTs time.Time

	// Only touched by the reader goroutine.
	accumulatedTranscript string
	unendedSegment        bool

	done chan struct{}
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey sets the key. Without it DEEPGRAM_API_KEY is used.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) { c.url = url }
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) { c.language = language }
}

// WithKeyterms boosts recognition of the given terms, usually the stop
// keywords.
func WithKeyterms(keyterms ...string) ClientOption {
	return func(c *TranscriptionClient) { c.keyterms = keyterms }
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *TranscriptionClient) { c.dialer = dialer }
}

func NewClient(opts ...ClientOption) *TranscriptionClient {
	c := &TranscriptionClient{
		url:      DefaultURL,
		model:    DefaultModel,
		language: DefaultLanguage,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv(apiKeyEnv)
	}
	return c
}
