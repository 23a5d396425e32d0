package esplorafees

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/arkade-os/txeditor/internal/core/ports"
	"github.com/arkade-os/txeditor/pkg/errors"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	log "github.com/sirupsen/logrus"
)

const (
	feeEstimatesEndpoint = "/fee-estimates"
	mempoolEndpoint      = "/mempool"
	sourceName           = "esplora"
)

type Option func(*source)

func WithHTTPClient(client *http.Client) Option {
	return func(s *source) {
		s.client = client
	}
}

type source struct {
	feeEstimatesURL string
	mempoolURL      string
	client          *http.Client
	minFeeratePerKb chainfee.SatPerKVByte
}

func NewFeeEstimateSource(esploraURL string, opts ...Option) (ports.FeeEstimateSource, error) {
	if len(esploraURL) == 0 {
		return nil, fmt.Errorf("esplora URL is required")
	}

	feeEstimatesURL, err := url.JoinPath(esploraURL, feeEstimatesEndpoint)
	if err != nil {
		return nil, err
	}
	mempoolURL, err := url.JoinPath(esploraURL, mempoolEndpoint)
	if err != nil {
		return nil, err
	}

	svc := &source{
		feeEstimatesURL: feeEstimatesURL,
		mempoolURL:      mempoolURL,
		client:          &http.Client{Timeout: 10 * time.Second},
		minFeeratePerKb: chainfee.SatPerKVByte(txrules.DefaultRelayFeePerKb),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// EtaFeeratePerKb uses the estimate of the largest confirmation target not above blocks.
func (s *source) EtaFeeratePerKb(ctx context.Context, blocks int) (int64, error) {
	target := fmt.Sprintf("%d blocks", blocks)
	if blocks <= 0 {
		return 0, fmt.Errorf("invalid confirmation target %d", blocks)
	}

	var estimates map[string]float64
	if err := s.get(ctx, s.feeEstimatesURL, &estimates); err != nil {
		return 0, errors.FEE_ESTIMATES_UNAVAILABLE.Wrap(err).
			WithMetadata(errors.FeeEstimatesMetadata{Source: sourceName, Target: target})
	}

	bestTarget := 0
	var satPerVByte float64
	for key, rate := range estimates {
		numBlocks, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if numBlocks <= blocks && numBlocks > bestTarget {
			bestTarget, satPerVByte = numBlocks, rate
		}
	}
	if bestTarget == 0 {
		return 0, errors.FEE_ESTIMATES_UNAVAILABLE.New("no estimate for %s", target).
			WithMetadata(errors.FeeEstimatesMetadata{Source: sourceName, Target: target})
	}

	feerate := s.toFeeratePerKb(satPerVByte)
	log.Debugf("fee estimate for %s: %s", target, feerate)
	return int64(feerate), nil
}

// DepthFeeratePerKb walks the mempool fee histogram from the highest feerate down and returns the
// feerate of the bucket reaching depth vbytes. A mempool shallower than depth gives the relay fee.
func (s *source) DepthFeeratePerKb(ctx context.Context, depth int64) (int64, error) {
	target := fmt.Sprintf("%d vbytes from tip", depth)
	if depth <= 0 {
		return 0, fmt.Errorf("invalid mempool depth %d", depth)
	}

	var mempool struct {
		FeeHistogram [][2]float64 `json:"fee_histogram"`
	}
	if err := s.get(ctx, s.mempoolURL, &mempool); err != nil {
		return 0, errors.FEE_ESTIMATES_UNAVAILABLE.Wrap(err).
			WithMetadata(errors.FeeEstimatesMetadata{Source: sourceName, Target: target})
	}

	histogram := mempool.FeeHistogram
	sort.SliceStable(histogram, func(i, j int) bool {
		return histogram[i][0] > histogram[j][0]
	})

	var cumulative float64
	satPerVByte := 0.0
	for _, bucket := range histogram {
		cumulative += bucket[1]
		if cumulative >= float64(depth) {
			satPerVByte = bucket[0]
			break
		}
	}

	feerate := s.toFeeratePerKb(satPerVByte)
	log.Debugf("fee estimate for %s: %s", target, feerate)
	return int64(feerate), nil
}

func (s *source) toFeeratePerKb(satPerVByte float64) chainfee.SatPerKVByte {
	feerate := chainfee.SatPerKVByte(math.Round(satPerVByte * 1000))
	if feerate < s.minFeeratePerKb {
		return s.minFeeratePerKb
	}
	return feerate
}

func (s *source) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	// nolint:all
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response of %s: %w", endpoint, err)
	}
	return nil
}
