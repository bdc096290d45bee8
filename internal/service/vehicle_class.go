package service

import "github.com/shiva/tripmatch/internal/model"

// ResolveVehicleClass picks the vehicle class for a party size.
//
// Weddings of 7–10 ride in a limousine; every other service of that size
// gets a van. The mapping is total: any count resolves to some class.
func ResolveVehicleClass(passengers int, serviceType model.ServiceType) model.VehicleClass {
	switch {
	case passengers <= 4:
		return model.ClassSedan
	case passengers <= 6:
		return model.ClassSUV
	case passengers <= 10:
		if serviceType == model.ServiceWedding {
			return model.ClassLimousine
		}
		return model.ClassVan
	case passengers <= 14:
		return model.ClassVan
	default:
		return model.ClassPartyBus
	}
}
