package basescore

// Criterion weight tables per super-category. Weights are percentages over the
// area criteria columns; a category missing from the table falls back to the
// uniform "Other / Misc" row.
var weights = map[string]map[string]float64{
	"Accommodation & Lodging": {
		"Score_Population_Density": 15.0, "Score_Footfall": 20.0, "Score_Transit": 12.0,
		"Score_Traffic": 5.0, "Score_Rent_Value": 8.0, "Score_Parking": 8.0,
		"Score_Night_Activity": 5.0, "Score_Walkability": 8.0, "Score_POI_Synergy": 8.0,
		"Score_Safety": 6.0,
	},
	"Education & Training": {
		"Score_Population_Density": 28.0, "Score_Footfall": 10.0, "Score_Transit": 12.0,
		"Score_Traffic": 8.0, "Score_Rent_Value": 8.0, "Score_Parking": 15.0,
		"Score_Night_Activity": 0.0, "Score_Walkability": 5.0, "Score_POI_Synergy": 5.0,
		"Score_Safety": 5.0,
	},
	"Entertainment & Leisure": {
		"Score_Population_Density": 20.0, "Score_Footfall": 25.0, "Score_Transit": 10.0,
		"Score_Traffic": 5.0, "Score_Rent_Value": 3.0, "Score_Parking": 8.0,
		"Score_Night_Activity": 15.0, "Score_Walkability": 8.0, "Score_POI_Synergy": 2.0,
		"Score_Safety": 1.0,
	},
	"Financial & Legal Services": {
		"Score_Population_Density": 20.0, "Score_Footfall": 5.0, "Score_Transit": 12.0,
		"Score_Traffic": 8.0, "Score_Rent_Value": 15.0, "Score_Parking": 8.0,
		"Score_Night_Activity": 0.0, "Score_Walkability": 8.0, "Score_POI_Synergy": 12.0,
		"Score_Safety": 4.0,
	},
	"Fitness & Wellness": {
		"Score_Population_Density": 25.0, "Score_Footfall": 20.0, "Score_Transit": 8.0,
		"Score_Traffic": 3.0, "Score_Rent_Value": 5.0, "Score_Parking": 10.0,
		"Score_Night_Activity": 8.0, "Score_Walkability": 10.0, "Score_POI_Synergy": 5.0,
		"Score_Safety": 3.0,
	},
	"Food & Beverages": {
		"Score_Population_Density": 20.0, "Score_Footfall": 30.0, "Score_Transit": 5.0,
		"Score_Traffic": 3.0, "Score_Rent_Value": 3.0, "Score_Parking": 5.0,
		"Score_Night_Activity": 15.0, "Score_Walkability": 12.0, "Score_POI_Synergy": 3.0,
		"Score_Safety": 2.0,
	},
	"Government & Public Services": {
		"Score_Population_Density": 25.0, "Score_Footfall": 10.0, "Score_Transit": 15.0,
		"Score_Traffic": 8.0, "Score_Rent_Value": 3.0, "Score_Parking": 12.0,
		"Score_Night_Activity": 0.0, "Score_Walkability": 5.0, "Score_POI_Synergy": 8.0,
		"Score_Safety": 2.0,
	},
	"Health & Medical": {
		"Score_Population_Density": 30.0, "Score_Footfall": 15.0, "Score_Transit": 10.0,
		"Score_Traffic": 3.0, "Score_Rent_Value": 5.0, "Score_Parking": 12.0,
		"Score_Night_Activity": 0.0, "Score_Walkability": 8.0, "Score_POI_Synergy": 7.0,
		"Score_Safety": 5.0,
	},
	"Other / Misc": {
		"Score_Population_Density": 9.09, "Score_Footfall": 9.09, "Score_Transit": 9.09,
		"Score_Traffic": 9.09, "Score_Rent_Value": 9.09, "Score_Parking": 9.09,
		"Score_Night_Activity": 9.09, "Score_Walkability": 9.09, "Score_POI_Synergy": 9.09,
		"Score_Safety": 9.09,
	},
	"Parks & Outdoor Recreation": {
		"Score_Population_Density": 25.0, "Score_Footfall": 20.0, "Score_Transit": 12.0,
		"Score_Traffic": 3.0, "Score_Rent_Value": 5.0, "Score_Parking": 10.0,
		"Score_Night_Activity": 2.0, "Score_Walkability": 12.0, "Score_POI_Synergy": 5.0,
		"Score_Safety": 6.0,
	},
	"Religious & Spiritual Places": {
		"Score_Population_Density": 28.0, "Score_Footfall": 15.0, "Score_Transit": 10.0,
		"Score_Traffic": 3.0, "Score_Rent_Value": 3.0, "Score_Parking": 8.0,
		"Score_Night_Activity": 5.0, "Score_Walkability": 8.0, "Score_POI_Synergy": 5.0,
		"Score_Safety": 5.0,
	},
	"Shopping & Retail": {
		"Score_Population_Density": 25.0, "Score_Footfall": 25.0, "Score_Transit": 8.0,
		"Score_Traffic": 5.0, "Score_Rent_Value": 5.0, "Score_Parking": 10.0,
		"Score_Night_Activity": 5.0, "Score_Walkability": 10.0, "Score_POI_Synergy": 2.0,
		"Score_Safety": 2.0,
	},
	"Transport & Auto Services": {
		"Score_Population_Density": 15.0, "Score_Footfall": 10.0, "Score_Transit": 15.0,
		"Score_Traffic": 25.0, "Score_Rent_Value": 5.0, "Score_Parking": 10.0,
		"Score_Night_Activity": 3.0, "Score_Walkability": 5.0, "Score_POI_Synergy": 5.0,
		"Score_Safety": 2.0,
	},
}

// WeightsFor returns the criterion weights for a super-category, falling back
// to the uniform table when the category has no dedicated row.
func WeightsFor(superCategory string) map[string]float64 {
	if w, ok := weights[superCategory]; ok {
		return w
	}
	return weights["Other / Misc"]
}
