package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/metrics"
	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/repository"
	"github.com/shiva/tripmatch/pkg/logger"
)

// ─── Booking Errors ─────────────────────────────────────────

var (
	// ErrNoAvailability is returned when no vehicle/driver pair is free.
	ErrNoAvailability = errors.New("no vehicles or drivers available")

	// ErrBookingTimeout is returned when the vehicle lock wait exceeds the deadline.
	ErrBookingTimeout = errors.New("booking timed out waiting for lock")
)

// ValidationError lists every offending field of a booking request by its
// JSON name.
type ValidationError struct {
	MissingFields []string
	InvalidFields []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.MissingFields, ", "))
	}
	if len(e.InvalidFields) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.InvalidFields, ", "))
	}
	return strings.Join(parts, "; ")
}

// Platform annotations prepended to a trip's special instructions.
var platformNotes = map[model.Platform]string{
	model.PlatformGNET:       "GNET Partner Booking - 12% commission tracking",
	model.PlatformGroundSpan: "Capital One Corporate - Premium service standards",
	model.PlatformCorporate:  "Corporate client - Volume discount applied",
}

const instructionSeparator = " | "

// DriverNotifier tells eligible drivers about a newly synchronized trip.
type DriverNotifier interface {
	NotifyTripOffered(ctx context.Context, trip model.Trip, class model.VehicleClass) error
}

// DefaultMaxMatchAttempts bounds re-matching when the proposed vehicle is
// taken between the availability check and the insert.
const DefaultMaxMatchAttempts = 3

// notifyTimeout bounds one fire-and-forget notification.
const notifyTimeout = 5 * time.Second

// ─── BookingService ─────────────────────────────────────────

// BookingService turns external booking requests into scheduled trips.
//
// Concurrency model:
//   - Matching is a read; the store re-checks the proposed vehicle under a
//     row lock when the trip is inserted.
//   - A lost race surfaces as repository.ErrVehicleConflict and triggers a
//     fresh match, up to maxAttempts times.
type BookingService struct {
	trips        repository.TripStore
	availability *AvailabilityService
	notifier     DriverNotifier
	metrics      *metrics.Metrics
	validate     *validator.Validate
	maxAttempts  int
	log          zerolog.Logger

	pending sync.WaitGroup
}

// NewBookingService creates a booking synchronizer.
func NewBookingService(
	trips repository.TripStore,
	availability *AvailabilityService,
	notifier DriverNotifier,
	m *metrics.Metrics,
	maxAttempts int,
) *BookingService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxMatchAttempts
	}
	return &BookingService{
		trips:        trips,
		availability: availability,
		notifier:     notifier,
		metrics:      m,
		validate:     NewValidator(),
		maxAttempts:  maxAttempts,
		log:          logger.New("booking"),
	}
}

// SyncBooking validates req, matches it against the fleet and stores a
// scheduled, unassigned trip. It returns the new trip id.
//
// Flow:
//  1. Validate required fields; report all missing ones at once.
//  2. Match a vehicle and driver for the pickup window.
//  3. Insert the trip (vehicle row locked, overlap re-checked).
//  4. On a lost vehicle race, go back to 2.
//  5. Offer the trip to eligible drivers without waiting for delivery.
func (s *BookingService) SyncBooking(ctx context.Context, req model.BookingRequest) (string, error) {
	platform := string(req.Platform)

	if err := s.Validate(req); err != nil {
		s.metrics.RecordBooking(platform, "invalid")
		return "", err
	}

	query := AvailabilityQuery{
		PickupTime:   *req.PickupDateTime,
		Passengers:   req.PassengerCount,
		ServiceType:  req.ServiceType,
		VehicleClass: req.VehicleClass,
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		avail, err := s.availability.Check(ctx, query)
		if err != nil {
			s.metrics.RecordBooking(platform, "error")
			return "", fmt.Errorf("booking: match: %w", err)
		}
		if !avail.Available {
			s.log.Info().
				Time("pickup_time", query.PickupTime).
				Str("vehicle_class", string(avail.VehicleClass)).
				Bool("driver_available", avail.DriverAvailable).
				Msg("no availability for booking")
			s.metrics.RecordBooking(platform, "no_availability")
			return "", ErrNoAvailability
		}

		trip := BuildTrip(req, *avail.AssignedVehicleID)
		err = s.trips.CreateTrip(ctx, &trip)
		if errors.Is(err, repository.ErrVehicleConflict) {
			s.log.Warn().
				Str("vehicle_id", *avail.AssignedVehicleID).
				Int("attempt", attempt).
				Msg("vehicle taken during booking, re-matching")
			continue
		}
		if err != nil {
			s.metrics.RecordBooking(platform, "error")
			return "", s.classifyError(err)
		}

		s.log.Info().
			Str("trip_id", trip.ID).
			Str("vehicle_id", *trip.VehicleID).
			Str("platform", platform).
			Bool("emergency", trip.IsEmergency()).
			Msg("booking synchronized")
		s.metrics.RecordBooking(platform, "created")

		s.offer(trip, avail.VehicleClass)
		return trip.ID, nil
	}

	s.metrics.RecordBooking(platform, "no_availability")
	return "", ErrNoAvailability
}

// Validate checks req and returns a *ValidationError naming every bad field.
func (s *BookingService) Validate(req model.BookingRequest) error {
	verr := &ValidationError{}
	seen := make(map[string]bool)
	missing := func(name string) {
		if !seen[name] {
			seen[name] = true
			verr.MissingFields = append(verr.MissingFields, name)
		}
	}

	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("booking: validate: %w", err)
		}
		for _, fe := range fieldErrs {
			switch fe.Tag() {
			case "required", "required_without":
				missing(fe.Field())
			default:
				verr.InvalidFields = append(verr.InvalidFields, fe.Field())
			}
		}
	}

	// A null or empty location is as good as absent.
	if len(req.PickupLocation) > 0 && model.LocationText(req.PickupLocation) == "" {
		missing("pickupLocation")
	}

	if len(verr.MissingFields) == 0 && len(verr.InvalidFields) == 0 {
		return nil
	}
	return verr
}

// Wait blocks until every in-flight driver notification has finished.
func (s *BookingService) Wait() {
	s.pending.Wait()
}

// BuildTrip synthesizes the scheduled trip stored for req on vehicleID.
func BuildTrip(req model.BookingRequest, vehicleID string) model.Trip {
	trip := model.Trip{
		VehicleID:           &vehicleID,
		CustomerName:        customerName(req.Platform),
		PickupLocation:      model.LocationText(req.PickupLocation),
		PickupTime:          req.PickupDateTime.UTC(),
		TripType:            req.ServiceType,
		Status:              model.TripScheduled,
		SpecialInstructions: BuildSpecialInstructions(req.Platform, req.SpecialInstructions),
		FareAmount:          req.TotalAmount,
		PlatformSource:      req.Platform,
	}
	if drop := model.LocationText(req.DropoffLocation); drop != "" {
		trip.DropoffLocation = &drop
	}
	if req.CorporateAccountID != "" {
		acct := req.CorporateAccountID
		trip.CorporateAccountID = &acct
	}
	return trip
}

// BuildSpecialInstructions prefixes the platform note, if any, to text.
func BuildSpecialInstructions(platform model.Platform, text string) string {
	parts := make([]string, 0, 2)
	if note, ok := platformNotes[platform]; ok {
		parts = append(parts, note)
	}
	if text = strings.TrimSpace(text); text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, instructionSeparator)
}

func customerName(p model.Platform) string {
	switch p {
	case model.PlatformGNET:
		return "GNET Customer"
	case model.PlatformGroundSpan:
		return "Capital One Associate"
	default:
		return "Customer"
	}
}

// offer notifies drivers in the background. Failures are logged only.
func (s *BookingService) offer(trip model.Trip, class model.VehicleClass) {
	if s.notifier == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyTripOffered(ctx, trip, class); err != nil {
			s.log.Warn().Err(err).Str("trip_id", trip.ID).Msg("driver notification failed")
		}
	}()
}

// classifyError maps store errors to booking errors.
func (s *BookingService) classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrBookingTimeout
	}
	return fmt.Errorf("booking: create trip: %w", err)
}

// NewValidator returns a validator that reports fields by their JSON name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
