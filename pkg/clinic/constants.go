package clinic

const (
	operationReserve  = "reserve"
	operationCancel   = "cancel"
	operationPublish  = "publish_availability"
	operationAddDoses = "add_doses"
	operationRegister = "register"
	operationVerify   = "verify"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)
