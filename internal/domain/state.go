package domain

import "time"

// Step is a position in the report wizard. The absence of a persisted
// conversation record is the idle state; StepIdle only appears in records
// created implicitly by a data write before the first transition.
type Step string

const (
	StepIdle          Step = "idle"
	StepLine          Step = "line"
	StepVehicle       Step = "vehicle"
	StepVehicleManual Step = "vehicle_manual"
	StepStation       Step = "station"
	StepDirection     Step = "direction"
	StepTime          Step = "time"
	StepRouteChoice   Step = "route_choice"
	StepRouteManual   Step = "route_manual"
	StepComment       Step = "comment"
	StepConfirm       Step = "confirm"
)

// Admin input modes live in the same persisted record, so a restart does not
// drop an admin mid-broadcast or mid-edit. The router ignores these steps for
// users outside the admin set.
const (
	StepAdminBroadcast Step = "admin_broadcast"
	StepAdminVehicles  Step = "admin_vehicles"
)

// ConversationState is the persisted per-user wizard record: current step plus
// the answers accumulated so far. Overwritten on every transition and deleted
// on completion, cancellation, or by the staleness sweep.
type ConversationState struct {
	UserID    int64             `bson:"user_id" json:"user_id"`
	Step      Step              `bson:"step" json:"step"`
	Data      map[string]string `bson:"data" json:"data"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updated_at"`
}
