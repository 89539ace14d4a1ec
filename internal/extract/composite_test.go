package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prequal-cli/internal/model"
)

type stubExtractor struct {
	ext Extraction
	err error
}

func (s stubExtractor) Extract(context.Context, string, Context) (Extraction, error) {
	return s.ext, s.err
}

func TestCompositeFirstMatchWins(t *testing.T) {
	first := stubExtractor{ext: Extraction{
		model.SlotDownPayment: {Value: 300_000.0, Confidence: 0.9, Source: model.SourceDeterministic},
	}}
	second := stubExtractor{ext: Extraction{
		model.SlotDownPayment:  {Value: 999_999.0, Confidence: 0.5, Source: model.SourceModel},
		model.SlotPropertyCity: {Value: "Miami", Confidence: 0.8, Source: model.SourceModel},
	}}

	c := NewComposite(first, second)
	out, err := c.Extract(context.Background(), "msg", Context{})
	require.NoError(t, err)

	assert.InDelta(t, 300_000, out[model.SlotDownPayment].Value.(float64), 0.001)
	assert.Equal(t, model.SourceDeterministic, out[model.SlotDownPayment].Source)
	assert.Equal(t, "Miami", out[model.SlotPropertyCity].Value)
}

func TestCompositeFailingPassSkipped(t *testing.T) {
	ok := stubExtractor{ext: Extraction{
		model.SlotPropertyCity: {Value: "Miami", Confidence: 0.8, Source: model.SourceDeterministic},
	}}
	broken := stubExtractor{err: errors.New("model unavailable")}

	c := NewComposite(ok, broken)
	out, err := c.Extract(context.Background(), "msg", Context{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestCompositeAllFailed(t *testing.T) {
	broken := stubExtractor{err: errors.New("model unavailable")}

	c := NewComposite(broken)
	_, err := c.Extract(context.Background(), "msg", Context{})
	assert.Error(t, err)
}

func TestCompositeEmptyResultNoError(t *testing.T) {
	empty := stubExtractor{ext: Extraction{}}

	c := NewComposite(empty)
	out, err := c.Extract(context.Background(), "msg", Context{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
