package models

// POI is a nearby amenity ranked by distance from the subject property.
type POI struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Label      string  `json:"label"`
	DistanceKm float64 `json:"distance_km"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}
