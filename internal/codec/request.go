package codec

import (
	"encoding/json"
	"sort"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// Subscribe request actions.
const (
	ActionUnsubscribe = 0
	ActionSubscribe   = 1
)

// TokenList groups tokens under one exchange segment.
type TokenList struct {
	ExchangeType uint8    `json:"exchangeType"`
	Tokens       []string `json:"tokens"`
}

type requestParams struct {
	Mode      uint8       `json:"mode"`
	TokenList []TokenList `json:"tokenList"`
}

type request struct {
	CorrelationID string        `json:"correlationID"`
	Action        int           `json:"action"`
	Params        requestParams `json:"params"`
}

// EncodeRequest builds one subscribe/unsubscribe request for a single mode.
// Subscriptions must share the mode; exchanges and tokens are sorted so a
// replay of the same registry snapshot produces identical bytes.
func EncodeRequest(correlationID string, action int, mode schema.SubscriptionMode, subscriptions []schema.Subscription) ([]byte, error) {
	lists := make([]TokenList, 0, len(subscriptions))
	for _, sub := range subscriptions {
		if sub.Mode != mode {
			return nil, errors.Errorf("mode mismatch: request %d, subscription %d", mode, sub.Mode)
		}
		tokens := append([]string(nil), sub.Tokens...)
		sort.Strings(tokens)
		lists = append(lists, TokenList{
			ExchangeType: uint8(sub.Exchange),
			Tokens:       tokens,
		})
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].ExchangeType < lists[j].ExchangeType })

	return json.Marshal(request{
		CorrelationID: correlationID,
		Action:        action,
		Params: requestParams{
			Mode:      uint8(mode),
			TokenList: lists,
		},
	})
}
