package memstore

import "github.com/shiva/tripmatch/internal/model"

// SeedDemo loads a small fleet so the memory backend is usable out of the box.
func (s *Store) SeedDemo() {
	vehicles := []model.Vehicle{
		{ID: "veh-001", Make: "Lincoln", Model: "Continental", LicensePlate: "TNT-001", Class: model.ClassSedan, Capacity: 4},
		{ID: "veh-002", Make: "Cadillac", Model: "CT6", LicensePlate: "TNT-002", Class: model.ClassSedan, Capacity: 4},
		{ID: "veh-003", Make: "Cadillac", Model: "Escalade", LicensePlate: "TNT-003", Class: model.ClassSUV, Capacity: 6},
		{ID: "veh-004", Make: "Lincoln", Model: "MKT Stretch", LicensePlate: "TNT-004", Class: model.ClassLimousine, Capacity: 10},
		{ID: "veh-005", Make: "Mercedes", Model: "Sprinter", LicensePlate: "TNT-005", Class: model.ClassVan, Capacity: 14},
		{ID: "veh-006", Make: "Ford", Model: "F-550 Party Bus", LicensePlate: "TNT-006", Class: model.ClassPartyBus, Capacity: 30},
		{ID: "veh-007", Make: "Chevrolet", Model: "Suburban", LicensePlate: "TNT-007", Class: model.ClassSUV, Capacity: 6, Status: model.VehicleMaintenance},
	}
	for _, v := range vehicles {
		s.AddVehicle(v)
	}

	drivers := []model.Driver{
		{ID: "drv-001", Name: "Alex Morgan"},
		{ID: "drv-002", Name: "Sam Rivera"},
		{ID: "drv-003", Name: "Jordan Lee"},
		{ID: "drv-004", Name: "Casey Kim", Status: model.DriverInactive},
	}
	for _, d := range drivers {
		s.AddDriver(d)
	}
}
