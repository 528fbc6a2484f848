package model

// FlightState gates which controller operations are legal. The only valid
// transitions are unpaired → paired → airborne → (landed → airborne → …);
// Airborne can never be true while Paired is false.
type FlightState struct {
	Paired   bool
	Airborne bool
}

// CanTakeoff reports whether a takeoff command is currently legal.
func (s FlightState) CanTakeoff() bool { return s.Paired && !s.Airborne }

// CanCalibrate reports whether calibration probes may be flown.
func (s FlightState) CanCalibrate() bool { return s.Paired && s.Airborne }
