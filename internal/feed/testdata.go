package feed

import (
	"encoding/json"
	"fmt"
	"testing/fstest"

	"github.com/jusunglee/hankyu-go/internal/models"
)

// MockDeparture is a compact way to describe one fixture departure
type MockDeparture struct {
	Time        string
	Type        string
	Destination string
	Platform    string
}

// CreateMockTimetable renders fixture documents into an in-memory file
// system laid out like the data directory. tables is keyed by direction,
// then line, then variant.
func CreateMockTimetable(tables map[models.Direction]map[models.Line]map[models.Variant][]MockDeparture) fstest.MapFS {
	fsys := fstest.MapFS{}
	for d, byLine := range tables {
		for line, byVariant := range byLine {
			for v, deps := range byVariant {
				doc := map[string][]map[string]string{string(d): {}}
				for _, dep := range deps {
					doc[string(d)] = append(doc[string(d)], map[string]string{
						"time":        dep.Time,
						"line":        string(line),
						"platform":    dep.Platform,
						"type":        dep.Type,
						"destination": dep.Destination,
					})
				}
				b, err := json.Marshal(doc)
				if err != nil {
					panic(fmt.Sprintf("marshal fixture %s: %v", Resource(d, line, v), err))
				}
				fsys[Resource(d, line, v)] = &fstest.MapFile{Data: b}
			}
		}
	}
	return fsys
}

// CreateSampleTimetable returns a small weekday and weekend timetable for
// both directions, using real Hankyu destinations
func CreateSampleTimetable() fstest.MapFS {
	weekday := models.Weekday
	weekend := models.Weekend

	return CreateMockTimetable(map[models.Direction]map[models.Line]map[models.Variant][]MockDeparture{
		models.JusoToUmeda: {
			models.Kyoto: {
				weekday: {
					{Time: "08:00", Type: "特急", Destination: "大阪梅田", Platform: "1"},
					{Time: "08:10", Type: "準急", Destination: "大阪梅田", Platform: "1"},
				},
				weekend: {
					{Time: "09:00", Type: "特急", Destination: "大阪梅田", Platform: "1"},
				},
			},
			models.Kobe: {
				weekday: {
					{Time: "08:05", Type: "特急", Destination: "大阪梅田", Platform: "5"},
					{Time: "08:20", Type: "普通", Destination: "大阪梅田", Platform: "6"},
				},
				weekend: {
					{Time: "09:05", Type: "普通", Destination: "大阪梅田", Platform: "6"},
				},
			},
			models.Takarazuka: {
				weekday: {
					{Time: "08:02", Type: "急行", Destination: "大阪梅田", Platform: "3"},
					{Time: "08:30", Type: "普通", Destination: "大阪梅田", Platform: "4"},
				},
				weekend: {
					{Time: "09:02", Type: "急行", Destination: "大阪梅田", Platform: "3"},
				},
			},
		},
		models.UmedaToJuso: {
			models.Kyoto: {
				weekday: {{Time: "07:50", Type: "特急", Destination: "京都河原町", Platform: "1"}},
				weekend: {{Time: "10:00", Type: "特急", Destination: "京都河原町", Platform: "1"}},
			},
			models.Kobe: {
				weekday: {{Time: "07:55", Type: "特急", Destination: "新開地", Platform: "7"}},
				weekend: {{Time: "10:05", Type: "特急", Destination: "新開地", Platform: "7"}},
			},
			models.Takarazuka: {
				weekday: {{Time: "07:52", Type: "急行", Destination: "宝塚", Platform: "4"}},
				weekend: {{Time: "10:02", Type: "急行", Destination: "宝塚", Platform: "4"}},
			},
		},
	})
}
