package mrt

import (
	"strings"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// gazetteer maps normalized location strings that Nominatim consistently
// fails on (causeway kilometer marks, station names) to known coordinates.
// Matching is exact first, then substring, so "KM0.75 JOHOR CAUSEWAY" hits
// the causeway entry.
var gazetteer = map[string]domain.Geo{
	"JOHOR-SINGAPORE CAUSEWAY":                 {Lat: 1.462, Lon: 103.763},
	"JOHOR CAUSEWAY":                           {Lat: 1.462, Lon: 103.763},
	"JALAN TUN ABDUL RAZAK, JOHOR BAHRU":       {Lat: 1.4658, Lon: 103.7617},
	"JALAN GEREJA, JOHOR BAHRU":                {Lat: 1.4568, Lon: 103.7630},
	"JALAN TEBRAU, JOHOR BAHRU":                {Lat: 1.4857, Lon: 103.7837},
	"JB SENTRAL":                               {Lat: 1.4624, Lon: 103.7639},
	"JALAN SULTAN AZLAN SHAH, SUNGAI TIRAM":    {Lat: 1.6407, Lon: 103.6787},
	"JALAN SALLEH, KIM TENG PARK, JOHOR BAHRU": {Lat: 1.4679, Lon: 103.7625},
}

// gazetteerLookup resolves a normalized location against the gazetteer.
func gazetteerLookup(normalized string) (domain.Geo, bool) {
	if geo, ok := gazetteer[normalized]; ok {
		return geo, true
	}
	for key, geo := range gazetteer {
		if strings.Contains(normalized, key) {
			return geo, true
		}
	}
	return domain.Geo{}, false
}
