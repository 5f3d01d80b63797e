package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grumming/grumming-app-sub004/config"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/logger"
)

const (
	minAutocompleteQuery = 2
	defaultSuggestions   = 5
	maxSuggestions       = 10
	defaultCountry       = "in"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ReverseGeocodeResult struct {
	LocationName     string `json:"locationName"`
	DetailedLocation string `json:"detailedLocation"`
	Road             string `json:"road"`
	Neighborhood     string `json:"neighborhood"`
	City             string `json:"city"`
	State            string `json:"state"`
	Country          string `json:"country"`
}

type PlaceSuggestion struct {
	Name        string      `json:"name"`
	FullName    string      `json:"fullName"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	Coordinates Coordinates `json:"coordinates"`
}

// PlaceGroup collects the suggestions that share a city and state.
type PlaceGroup struct {
	City   string            `json:"city"`
	State  string            `json:"state"`
	Places []PlaceSuggestion `json:"places"`
}

type AutocompleteResult struct {
	Suggestions []PlaceSuggestion `json:"suggestions"`
	Grouped     []PlaceGroup      `json:"grouped"`
}

type mapboxFeature struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	PlaceName string    `json:"place_name"`
	PlaceType []string  `json:"place_type"`
	Center    []float64 `json:"center"`
	Context   []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"context"`
}

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
	Message  string          `json:"message"`
}

// Geocoder proxies the Mapbox geocoding API.
type Geocoder struct {
	client *resty.Client
	token  string
	log    *logger.Logger
}

func NewGeocoder(cfg config.MapboxConfig, log *logger.Logger) *Geocoder {
	return &Geocoder{
		client: resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(10 * time.Second),
		token:  cfg.AccessToken,
		log:    orDefault(log),
	}
}

// Configured reports whether a Mapbox token is present.
func (g *Geocoder) Configured() bool {
	return g != nil && g.token != ""
}

// ReverseGeocode resolves a coordinate pair into a human readable address.
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*ReverseGeocodeResult, error) {
	if !g.Configured() {
		return nil, errors.E(errors.Config, errors.Code(CodeNotConfigured), "Geocoding service not configured")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "Invalid coordinates")
	}

	path := fmt.Sprintf("/geocoding/v5/mapbox.places/%f,%f.json", lng, lat)
	features, err := g.query(ctx, path, map[string]string{
		"types": "address,neighborhood,locality,place,region,country",
	})
	if err != nil {
		return nil, err
	}

	res := &ReverseGeocodeResult{}
	for _, f := range features {
		switch primaryType(f) {
		case "address", "poi":
			if res.Road == "" {
				res.Road = f.Text
			}
		case "neighborhood", "locality":
			if res.Neighborhood == "" {
				res.Neighborhood = f.Text
			}
		case "place":
			if res.City == "" {
				res.City = f.Text
			}
		case "region":
			if res.State == "" {
				res.State = f.Text
			}
		case "country":
			if res.Country == "" {
				res.Country = f.Text
			}
		}
		fillFromContext(f, &res.Neighborhood, &res.City, &res.State, &res.Country)
	}
	if len(features) > 0 {
		res.DetailedLocation = features[0].PlaceName
	}
	res.LocationName = firstNonEmpty(res.Neighborhood, res.City, res.State, res.Country)
	if res.LocationName == "" {
		res.LocationName = "Unknown location"
	}
	return res, nil
}

// Autocomplete suggests places matching query. Queries shorter than two characters return an
// empty result without calling the provider.
func (g *Geocoder) Autocomplete(ctx context.Context, query, country string, limit int) (*AutocompleteResult, error) {
	res := &AutocompleteResult{Suggestions: []PlaceSuggestion{}, Grouped: []PlaceGroup{}}
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minAutocompleteQuery {
		return res, nil
	}
	if !g.Configured() {
		return res, errors.E(errors.Config, errors.Code(CodeNotConfigured), "Geocoding service not configured")
	}
	if country == "" {
		country = defaultCountry
	}
	if limit <= 0 {
		limit = defaultSuggestions
	}
	if limit > maxSuggestions {
		limit = maxSuggestions
	}

	path := "/geocoding/v5/mapbox.places/" + url.PathEscape(query) + ".json"
	features, err := g.query(ctx, path, map[string]string{
		"autocomplete": "true",
		"country":      strings.ToLower(country),
		"limit":        fmt.Sprint(limit),
		"types":        "place,locality,neighborhood,address,poi",
	})
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	for _, f := range features {
		s := PlaceSuggestion{Name: f.Text, FullName: f.PlaceName}
		if len(f.Center) == 2 {
			s.Coordinates = Coordinates{Longitude: f.Center[0], Latitude: f.Center[1]}
		}
		if primaryType(f) == "place" {
			s.City = f.Text
		}
		var neighborhood, country string
		fillFromContext(f, &neighborhood, &s.City, &s.State, &country)
		res.Suggestions = append(res.Suggestions, s)

		key := s.City + "|" + s.State
		i, ok := index[key]
		if !ok {
			i = len(res.Grouped)
			index[key] = i
			res.Grouped = append(res.Grouped, PlaceGroup{City: s.City, State: s.State})
		}
		res.Grouped[i].Places = append(res.Grouped[i].Places, s)
	}
	return res, nil
}

func (g *Geocoder) query(ctx context.Context, path string, params map[string]string) ([]mapboxFeature, error) {
	var body mapboxResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("access_token", g.token).
		ForceContentType("application/json").
		SetResult(&body).
		SetError(&body).
		Get(path)
	if err != nil {
		g.log.Error("Mapbox request failed: %v", err)
		return nil, errors.E(errors.Upstream, errors.Code(CodeProviderError), "Geocoding request failed", err)
	}
	if resp.IsError() {
		g.log.Error("Mapbox API error: status %s: %s", resp.Status(), body.Message)
		return nil, errors.E(errors.Upstream, errors.Code(CodeProviderError), "Geocoding request failed")
	}
	return body.Features, nil
}

func primaryType(f mapboxFeature) string {
	if len(f.PlaceType) > 0 {
		return f.PlaceType[0]
	}
	return ""
}

// fillFromContext sets empty fields from the feature's context entries, whose ids look like
// "place.123" or "region.456".
func fillFromContext(f mapboxFeature, neighborhood, city, state, country *string) {
	for _, c := range f.Context {
		kind, _, _ := strings.Cut(c.ID, ".")
		var dst *string
		switch kind {
		case "neighborhood", "locality":
			dst = neighborhood
		case "place":
			dst = city
		case "region":
			dst = state
		case "country":
			dst = country
		}
		if dst != nil && *dst == "" {
			*dst = c.Text
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
