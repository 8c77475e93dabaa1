package currencies

import "github.com/sig-0/fxquote/storage/types"

var (
	RUB  types.Currency = "RUB"
	THB  types.Currency = "THB"
	USD  types.Currency = "USD"
	USDT types.Currency = "USDT"
)
