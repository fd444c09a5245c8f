package calendar

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"bhavcast/internal/logger"
	"bhavcast/internal/market"
)

const (
	nseHolidayAPI  = "https://www.nseindia.com/api/holiday-master?type=trading"
	nseHolidayPage = "https://www.nseindia.com/resources/exchange-communication-holidays"
	nseDateLayout  = "02-Jan-2006"
)

// NSESource fetches the exchange holiday list from nseindia.com and caches
// it through CacheDir in the FileSource layout, so a year is fetched at most
// once. The JSON holiday-master endpoint is tried first; the public holiday
// page's HTML table is the fallback because the API intermittently rejects
// non-browser clients.
type NSESource struct {
	CacheDir string
	Client   *http.Client
}

func NewNSESource(cacheDir string, timeout time.Duration) *NSESource {
	return &NSESource{
		CacheDir: cacheDir,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (s *NSESource) HolidaysFor(year int) (map[string]struct{}, error) {
	if set, err := (FileSource{Dir: s.CacheDir}).HolidaysFor(year); err == nil {
		return set, nil
	}
	set, err := s.fetchJSON(year)
	if err != nil {
		logger.Warnf("holiday-master API failed (%v), falling back to HTML page", err)
		set, err = s.fetchHTML(year)
	}
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("exchange returned no holidays for %d", year)
	}
	if err := WriteHolidayFile(s.CacheDir, year, set); err != nil {
		logger.Warnf("caching holidays for %d failed: %v", year, err)
	}
	return set, nil
}

func (s *NSESource) get(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "*/*")
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *NSESource) fetchJSON(year int) (map[string]struct{}, error) {
	body, err := s.get(nseHolidayAPI)
	if err != nil {
		return nil, err
	}
	// Capital-market segment dates, e.g. {"CM":[{"tradingDate":"26-Jan-2024",...}]}
	result := gjson.GetBytes(body, "CM.#.tradingDate")
	if !result.Exists() {
		return nil, fmt.Errorf("holiday-master response missing CM segment")
	}
	set := make(map[string]struct{})
	for _, item := range result.Array() {
		t, err := time.Parse(nseDateLayout, strings.TrimSpace(item.String()))
		if err != nil || t.Year() != year {
			continue
		}
		set[market.Day(t).Format(market.DateLayout)] = struct{}{}
	}
	return set, nil
}

func (s *NSESource) fetchHTML(year int) (map[string]struct{}, error) {
	body, err := s.get(nseHolidayPage)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		raw := strings.TrimSpace(cells.First().Text())
		t, err := time.Parse(nseDateLayout, raw)
		if err != nil || t.Year() != year {
			return
		}
		set[market.Day(t).Format(market.DateLayout)] = struct{}{}
	})
	if len(set) == 0 {
		return nil, fmt.Errorf("no holiday rows for %d on exchange page", year)
	}
	return set, nil
}
