package fetcher

import (
	"fmt"
	"regexp"
	"strings"

	"kairos/backtest"
)

type Listing struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// Large-cap KOSPI listings offered for search and display names.
var listings = []Listing{
	{"005930", "삼성전자", "전기전자"},
	{"000660", "SK하이닉스", "전기전자"},
	{"373220", "LG에너지솔루션", "전기전자"},
	{"207940", "삼성바이오로직스", "의약품"},
	{"005380", "현대자동차", "운수장비"},
	{"000270", "기아", "운수장비"},
	{"068270", "셀트리온", "의약품"},
	{"035420", "NAVER", "서비스업"},
	{"035720", "카카오", "서비스업"},
	{"051910", "LG화학", "화학"},
	{"006400", "삼성SDI", "전기전자"},
	{"005490", "POSCO홀딩스", "철강금속"},
	{"055550", "신한지주", "금융업"},
	{"105560", "KB금융", "금융업"},
	{"012330", "현대모비스", "운수장비"},
	{"028260", "삼성물산", "유통업"},
	{"051900", "LG생활건강", "화학"},
	{"036570", "엔씨소프트", "서비스업"},
	{"018260", "삼성에스디에스", "서비스업"},
}

// LookupName returns the listed name for a code.
func LookupName(code string) (string, bool) {
	l, ok := ListingByCode(code)
	return l.Name, ok
}

// SearchListings matches query against code or name, case-insensitively. An empty
// query returns the head of the list.
func SearchListings(query string, limit int) []Listing {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Listing, 0, limit)
	for _, l := range listings {
		if len(out) == limit {
			break
		}
		if q == "" || strings.Contains(strings.ToLower(l.Name), q) || strings.Contains(l.Code, q) {
			out = append(out, l)
		}
	}
	return out
}

// ListingByCode returns the listing for a code.
func ListingByCode(code string) (Listing, bool) {
	c := strings.TrimSpace(code)
	for _, l := range listings {
		if l.Code == c {
			return l, true
		}
	}
	return Listing{}, false
}

// PopularListings returns the head of the catalog, which is ordered by market cap.
func PopularListings(limit int) []Listing {
	if limit <= 0 || limit > len(listings) {
		limit = len(listings)
	}
	return append([]Listing(nil), listings[:limit]...)
}

// ListingsBySector matches the sector name case-insensitively.
func ListingsBySector(sector string, limit int) []Listing {
	if limit <= 0 {
		limit = 20
	}
	want := strings.TrimSpace(sector)
	out := make([]Listing, 0)
	for _, l := range listings {
		if len(out) == limit {
			break
		}
		if strings.EqualFold(l.Sector, want) {
			out = append(out, l)
		}
	}
	return out
}

var codePattern = regexp.MustCompile(`^\d{6}$`)

// ValidateCode accepts six-digit KRX short codes.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: stock code must be 6 digits, got %q", backtest.ErrConfiguration, code)
	}
	return nil
}
