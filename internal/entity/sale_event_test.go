package entity

import (
	"testing"
	"time"

	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvenanceFromColumns(t *testing.T) {
	p, err := ProvenanceFromColumns([]byte(`{"a":1}`), nil)
	require.NoError(t, err)
	assert.IsType(t, WebhookProvenance{}, p)
	assert.JSONEq(t, `{"a":1}`, string(p.Raw()))

	p, err = ProvenanceFromColumns(nil, []byte(`{}`))
	require.NoError(t, err)
	assert.IsType(t, PollingProvenance{}, p)

	p, err = ProvenanceFromColumns(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = ProvenanceFromColumns([]byte(`{}`), []byte(`{}`))
	assert.ErrorIs(t, err, errs.ErrInvalidProvenance)
}

func TestProvenanceColumns(t *testing.T) {
	w, p := ProvenanceColumns(WebhookProvenance{Data: []byte(`1`)})
	assert.Equal(t, []byte(`1`), w)
	assert.Nil(t, p)

	w, p = ProvenanceColumns(PollingProvenance{Data: []byte(`2`)})
	assert.Nil(t, w)
	assert.Equal(t, []byte(`2`), p)

	w, p = ProvenanceColumns(nil)
	assert.Nil(t, w)
	assert.Nil(t, p)

	assert.Equal(t, "none", ProvenanceName(nil))
	assert.Equal(t, "webhook", ProvenanceName(WebhookProvenance{}))
}

func TestParseMarketplace(t *testing.T) {
	m, err := ParseMarketplace("poshmark")
	require.NoError(t, err)
	assert.Equal(t, Poshmark, m)

	_, err = ParseMarketplace("etsy")
	assert.ErrorIs(t, err, errs.ErrUnknownMarketplace)
}

func TestProcessingStats_Add(t *testing.T) {
	var s ProcessingStats
	now := time.Now()
	job := uuid.New()

	s.Add(ProcessResult{EventID: uuid.New(), Success: true, JobID: &job}, now)
	s.Add(ProcessResult{EventID: uuid.New(), Success: true}, now)
	s.Add(ProcessResult{EventID: uuid.New(), Error: "gone", Kind: errs.KindNotFound}, now)
	s.Add(ProcessResult{EventID: uuid.New(), Error: "slow", Kind: errs.KindRateLimited, Retryable: true}, now)

	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 1, s.JobsCreated)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Retried)
	require.Len(t, s.Errors, 2)
	assert.Equal(t, "gone", s.Errors[0].Error)
	assert.Equal(t, errs.KindRateLimited, s.Errors[1].Kind)
}
