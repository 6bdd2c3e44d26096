package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func TestEncodeRequestShape(t *testing.T) {
	payload, err := EncodeRequest("corr-1", ActionSubscribe, schema.ModeLTP, []schema.Subscription{
		{Mode: schema.ModeLTP, Exchange: schema.ExchangeNSEFO, Tokens: []string{"200", "100"}},
		{Mode: schema.ModeLTP, Exchange: schema.ExchangeNSECM, Tokens: []string{"3045"}},
	})
	require.NoError(t, err)

	var got struct {
		CorrelationID string `json:"correlationID"`
		Action        int    `json:"action"`
		Params        struct {
			Mode      uint8 `json:"mode"`
			TokenList []struct {
				ExchangeType uint8    `json:"exchangeType"`
				Tokens       []string `json:"tokens"`
			} `json:"tokenList"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(payload, &got))

	assert.Equal(t, "corr-1", got.CorrelationID)
	assert.Equal(t, 1, got.Action)
	assert.Equal(t, uint8(1), got.Params.Mode)
	require.Len(t, got.Params.TokenList, 2)
	assert.Equal(t, uint8(1), got.Params.TokenList[0].ExchangeType)
	assert.Equal(t, []string{"3045"}, got.Params.TokenList[0].Tokens)
	assert.Equal(t, uint8(2), got.Params.TokenList[1].ExchangeType)
	assert.Equal(t, []string{"100", "200"}, got.Params.TokenList[1].Tokens)
}

func TestEncodeRequestDeterministic(t *testing.T) {
	subs := []schema.Subscription{
		{Mode: schema.ModeQuote, Exchange: schema.ExchangeNSEFO, Tokens: []string{"b", "a", "c"}},
	}
	first, err := EncodeRequest("corr-2", ActionSubscribe, schema.ModeQuote, subs)
	require.NoError(t, err)
	second, err := EncodeRequest("corr-2", ActionSubscribe, schema.ModeQuote, subs)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncodeRequestModeMismatch(t *testing.T) {
	_, err := EncodeRequest("corr-3", ActionUnsubscribe, schema.ModeLTP, []schema.Subscription{
		{Mode: schema.ModeQuote, Exchange: schema.ExchangeNSEFO, Tokens: []string{"1"}},
	})
	assert.Error(t, err)
}
