package remote

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/kibbyd/rps-adaptive/internal/move"
)

// #region types

// Prediction is one detection returned by the service.
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

type detectResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Config holds remote classifier parameters.
type Config struct {
	BaseURL       string
	ModelID       string
	APIKey        string
	MinConfidence float64
	Timeout       time.Duration
	CacheTTL      time.Duration
}

// #endregion types

// #region config

// DefaultConfig returns defaults, overridden by RPS_REMOTE_URL,
// RPS_REMOTE_MODEL, RPS_REMOTE_API_KEY, RPS_REMOTE_MIN_CONFIDENCE,
// RPS_REMOTE_TIMEOUT (seconds) and RPS_REMOTE_CACHE_TTL (milliseconds).
func DefaultConfig() Config {
	cfg := Config{
		BaseURL:       "https://detect.roboflow.com",
		ModelID:       "rock-paper-scissors-sxsw/1",
		MinConfidence: 0.5,
		Timeout:       5 * time.Second,
		CacheTTL:      2 * time.Second,
	}
	if v := os.Getenv("RPS_REMOTE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("RPS_REMOTE_MODEL"); v != "" {
		cfg.ModelID = v
	}
	cfg.APIKey = os.Getenv("RPS_REMOTE_API_KEY")
	if v := os.Getenv("RPS_REMOTE_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.MinConfidence = f
		}
	}
	if v := os.Getenv("RPS_REMOTE_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("RPS_REMOTE_CACHE_TTL"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			cfg.CacheTTL = time.Duration(ms) * time.Millisecond
		}
	}
	return cfg
}

// Enabled reports whether enough is configured to call the service.
func (c Config) Enabled() bool {
	return c.APIKey != "" && c.BaseURL != "" && c.ModelID != ""
}

// #endregion config

// #region client

// Client classifies frames with a hosted detection model. It satisfies
// vision.Classifier: every failure degrades to "no gesture".
type Client struct {
	cfg   Config
	http  *http.Client
	cache *cache.Cache
	log   *zap.Logger
}

type cachedResult struct {
	move move.Move
	ok   bool
}

// NewClient creates a Client. logger may be nil.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache.New(ttl, 10*ttl),
		log:   logger,
	}
}

// Classify encodes frame as JPEG and asks the service for the most confident
// hand shape. Identical frames within CacheTTL reuse the previous answer.
func (c *Client) Classify(ctx context.Context, frame gocv.Mat) (move.Move, bool) {
	if frame.Empty() {
		return 0, false
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		c.log.Warn("encode frame", zap.Error(err))
		return 0, false
	}
	defer buf.Close()
	jpeg := buf.GetBytes()

	key := frameKey(jpeg)
	if c.cfg.CacheTTL > 0 {
		if v, found := c.cache.Get(key); found {
			r := v.(cachedResult)
			return r.move, r.ok
		}
	}

	preds, err := c.Detect(ctx, jpeg)
	if err != nil {
		c.log.Warn("remote classification failed", zap.Error(err))
		return 0, false
	}
	m, ok := c.Best(preds)
	if c.cfg.CacheTTL > 0 {
		c.cache.SetDefault(key, cachedResult{move: m, ok: ok})
	}
	return m, ok
}

// Detect posts a JPEG image and returns the raw predictions.
func (c *Client) Detect(ctx context.Context, jpeg []byte) ([]Prediction, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	body := base64.StdEncoding.EncodeToString(jpeg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("detect: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Predictions, nil
}

// Best picks the most confident prediction and maps its label to a move.
// Labels that are not a move, or a best confidence under MinConfidence,
// yield false.
func (c *Client) Best(preds []Prediction) (move.Move, bool) {
	var best *Prediction
	for i := range preds {
		if best == nil || preds[i].Confidence > best.Confidence {
			best = &preds[i]
		}
	}
	if best == nil || best.Confidence < c.cfg.MinConfidence {
		return 0, false
	}
	m, err := move.Parse(best.Class)
	if err != nil {
		c.log.Debug("unmapped label", zap.String("class", best.Class))
		return 0, false
	}
	return m, true
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(c.cfg.ModelID, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func frameKey(jpeg []byte) string {
	sum := md5.Sum(jpeg)
	return hex.EncodeToString(sum[:])
}

// #endregion client
