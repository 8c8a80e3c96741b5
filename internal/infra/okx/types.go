package okx

// restResponse is the OKX V5 envelope. Code "0" means success;
// everything else carries a human-readable reason in Msg.
type restResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

// placeOrderRequest is the body of POST /api/v5/trade/order.
type placeOrderRequest struct {
	InstID     string `json:"instId"`
	TdMode     string `json:"tdMode"`
	Side       string `json:"side"`
	OrdType    string `json:"ordType"`
	Sz         string `json:"sz"`
	ReduceOnly bool   `json:"reduceOnly,omitempty"`
}

type placeOrderData struct {
	OrdID string `json:"ordId"`
	SCode string `json:"sCode"`
	SMsg  string `json:"sMsg"`
}

type cancelOrderRequest struct {
	InstID string `json:"instId"`
	OrdID  string `json:"ordId"`
}

type cancelOrderData struct {
	OrdID string `json:"ordId"`
	SCode string `json:"sCode"`
	SMsg  string `json:"sMsg"`
}

type orderDetailData struct {
	OrdID string `json:"ordId"`
	State string `json:"state"`
}

// subscribeRequest is the channel subscription frame, shared by the
// public and business endpoints.
type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// tickerResponse carries pushes from the "tickers" channel.
type tickerResponse struct {
	Arg  subscribeArg `json:"arg"`
	Data []tickerData `json:"data"`
}

type tickerData struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	Ts     string `json:"ts"`
}

// candleResponse carries pushes from the candle channels.
// Each row is a positional array:
// [ts, open, high, low, close, vol, volCcy, volCcyQuote, confirm]
// where confirm is "1" once the candle is closed.
type candleResponse struct {
	Arg  subscribeArg `json:"arg"`
	Data [][]string   `json:"data"`
}
