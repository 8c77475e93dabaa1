// Package spot provides the spot rate providers feeding the RUB/USDT/THB corridor.
//
// # Providers
//
// ## Binance (USDT/THB)
//
// Source: "BINANCE"
// API: https://api.binance.com/api/v3/ticker/price?symbol=USDTTHB
// Fallback API: https://api.binance.th/api/v1/ticker/price?symbol=USDTTHB
// Interval: 1 minute
//
// Fetches the last traded USDT/THB price. Endpoints are tried in order,
// the first successful response wins. Returns a single MID rate:
//
//	USDT/THB
//
// ## Doverka (RUB/USDT)
//
// Source: "DOVERKA"
// API: {base}/v1/currencies (bearer API key)
// Interval: 1 minute
//
// Fetches the partner's currency list and picks the USD or USDT entry.
// The rate_from_rub field is preferred when it looks like a RUB per USDT
// price (above 80), otherwise rate_to_rub is used. Returns a single MID rate:
//
//	USDT/RUB
//
// ## CBR (Official Central Bank)
//
// Source: "CBR"
// URL: https://www.cbr.ru/currency_base/daily/
// Interval: 6 hours
//
// Scrapes the official daily reference table of the Bank of Russia.
// Rates are quoted per nominal (THB is quoted per 10 units) and are
// normalized to a single unit. Returns MID rates for:
//
//	USD/RUB, THB/RUB
//
// The effective date (AsOf) is parsed from the date filter on the page.
package spot
