package alphavantage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"StockDash/internal/domain/models"
	"StockDash/pkg/util"
)

// Response keys.
const (
	keyBestMatches  = "bestMatches"
	keyDailySeries  = "Time Series (Daily)"
	keyMetaData     = "Meta Data"
	keyNote         = "Note"
	keyInformation  = "Information"
	keyErrorMessage = "Error Message"
)

// CleanDaily turns the provider's date-keyed record map into typed bars,
// strictly ascending by date. A record is dropped when its date does not
// parse or when one of the five OHLCV fields is absent or not numeric.
// Other labels are ignored. Two keys naming the same calendar day collapse
// into one bar; the lexically last key wins. The second return value
// counts the records that did not make it into the result.
func CleanDaily(records map[string]map[string]interface{}) ([]models.PriceBar, int) {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bars := make([]models.PriceBar, 0, len(keys))
	index := make(map[int64]int, len(keys))
	dropped := 0

	for _, k := range keys {
		bar, ok := cleanRecord(k, records[k])
		if !ok {
			dropped++
			continue
		}
		day := bar.Date.Unix()
		if i, dup := index[day]; dup {
			bars[i] = bar
			dropped++
			continue
		}
		index[day] = len(bars)
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, dropped
}

func cleanRecord(key string, rec map[string]interface{}) (models.PriceBar, bool) {
	date, ok := util.ParseTradingDate(key)
	if !ok || rec == nil {
		return models.PriceBar{}, false
	}

	fields := make(map[string]interface{}, len(rec))
	for label, raw := range rec {
		fields[strings.TrimSpace(label)] = raw
	}

	vals := make([]float64, len(models.PriceColumns))
	for i, col := range models.PriceColumns {
		raw, ok := fields[col]
		if !ok {
			return models.PriceBar{}, false
		}
		v, ok := util.ToFloat(raw)
		if !ok {
			return models.PriceBar{}, false
		}
		vals[i] = v
	}

	return models.PriceBar{
		Date:   date,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, true
}

// decodeMatches converts the raw bestMatches array into rows, stringifying
// any non-string cell.
func decodeMatches(raw json.RawMessage) ([]models.SymbolMatch, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, keyBestMatches, err)
	}

	rows := make([]models.SymbolMatch, 0, len(items))
	for _, it := range items {
		row := make(models.SymbolMatch, len(it))
		for k, v := range it {
			switch s := v.(type) {
			case string:
				row[k] = s
			case nil:
				row[k] = ""
			default:
				row[k] = fmt.Sprint(s)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeMeta reads the optional "Meta Data" block. Unknown shapes yield nil.
func decodeMeta(raw json.RawMessage) *models.SeriesMeta {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}

	meta := &models.SeriesMeta{}
	for k, v := range m {
		_, label, found := strings.Cut(k, ". ")
		if !found {
			label = k
		}
		switch strings.TrimSpace(label) {
		case "Information":
			meta.Information = v
		case "Symbol":
			meta.Symbol = v
		case "Last Refreshed":
			meta.LastRefreshed = v
		case "Output Size":
			meta.OutputSize = v
		case "Time Zone":
			meta.TimeZone = v
		}
	}
	return meta
}

// providerMessage returns whatever explanation the provider put in place
// of the expected payload (rate-limit note, invalid call message).
func providerMessage(body map[string]json.RawMessage) string {
	for _, k := range []string{keyErrorMessage, keyNote, keyInformation} {
		raw, ok := body[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}
