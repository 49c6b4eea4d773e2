package clinic

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by booking operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing scheduling operation.
type OperationLog struct {
	Operation     string
	Role          Role
	Actor         Username
	AppointmentID *AppointmentID
	Vaccine       VaccineName
	Date          ScheduleDate
	Status        string
	Error         error
	AtUnixUTC     int64
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}
