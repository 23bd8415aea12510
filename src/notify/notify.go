// Package notify signals run phases to a healthchecks-style endpoint. Pings
// are strictly best-effort: failures are logged at warning level and never
// influence the run's own status.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"volume-backup/src/version"
)

const (
	RequestTimeout   = 10 * time.Second
	RetryCount       = 2
	RetryWaitTime    = 500 * time.Millisecond
	RetryWaitTimeMax = 3 * time.Second
)

// Phase is a run milestone reported to the endpoint.
type Phase string

const (
	PhaseStart   Phase = "start"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

type Pinger interface {
	Ping(ctx context.Context, phase Phase)
}

// New returns a Pinger for the given base URL, or a no-op when the URL is
// empty. The base URL is validated (scheme, trailing slash) at config load.
func New(baseURL string, logger *zap.SugaredLogger) Pinger {
	if baseURL == "" {
		return NewNoop()
	}
	c := resty.New()
	c.SetHeader("User-Agent", fmt.Sprintf("volume-backup/%s", version.Version))
	c.SetTimeout(RequestTimeout)
	c.SetRetryCount(RetryCount)
	c.SetRetryWaitTime(RetryWaitTime)
	c.SetRetryMaxWaitTime(RetryWaitTimeMax)
	return &httpPinger{baseURL: baseURL, http: c, logger: logger}
}

type httpPinger struct {
	baseURL string
	http    *resty.Client
	logger  *zap.SugaredLogger
}

func (p *httpPinger) Ping(ctx context.Context, phase Phase) {
	url := p.url(phase)
	resp, err := p.http.R().SetContext(ctx).Get(url)
	if err != nil {
		p.logger.Warnf("liveness ping %s: %s", phase, err)
		return
	}
	if resp.IsError() {
		p.logger.Warnf("liveness ping %s: endpoint returned %s", phase, resp.Status())
		return
	}
	p.logger.Debugf("liveness ping %s delivered", phase)
}

// url maps phases onto the healthchecks convention: /start on begin, the
// bare base on success, /fail on failure.
func (p *httpPinger) url(phase Phase) string {
	switch phase {
	case PhaseStart:
		return p.baseURL + "/start"
	case PhaseFailure:
		return p.baseURL + "/fail"
	default:
		return p.baseURL
	}
}

// NewNoop returns a Pinger that does nothing, for runs without a configured
// endpoint.
func NewNoop() Pinger {
	return noopPinger{}
}

type noopPinger struct{}

func (noopPinger) Ping(context.Context, Phase) {}
