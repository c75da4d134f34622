package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDownloadAccumulatesDeltas(t *testing.T) {
	c := NewCollector()

	c.ObserveDownload("encoder-model", 1000, 10)
	c.ObserveDownload("encoder-model", 500, 15)

	assert.InDelta(t, 1500, testutil.ToFloat64(c.downloadBytes.WithLabelValues("encoder-model")), 1e-9)
	assert.InDelta(t, 15, testutil.ToFloat64(c.downloadProgress.WithLabelValues("encoder-model")), 1e-9)
}

func TestObserveDownloadIgnoresNegativeDelta(t *testing.T) {
	c := NewCollector()

	c.ObserveDownload("generative-gguf", 2048, 50)
	// A rejected resume restarts the transfer from zero; the cumulative
	// byte counter must not move backwards.
	c.ObserveDownload("generative-gguf", -2048, 0)

	assert.InDelta(t, 2048, testutil.ToFloat64(c.downloadBytes.WithLabelValues("generative-gguf")), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(c.downloadProgress.WithLabelValues("generative-gguf")), 1e-9)
}
