package pvnet

// Config configures the policy-value network.
type Config struct {
	ObservationLen int // length of the flat canonical observation
	ActionSpace    int // number of actions (legal or not)
	Hidden         int // width of the shared trunk and the value head

	BatchSize    int     // rows per forward pass
	PolicyWeight float64 // weight of the policy loss relative to the value loss

	FwdOnly bool // build only the forward graph (inference)
}

// DefaultConf sizes a network for a game with the given observation length
// and action space.
func DefaultConf(observationLen, actionSpace int) Config {
	return Config{
		ObservationLen: observationLen,
		ActionSpace:    actionSpace,
		Hidden:         64,
		BatchSize:      32,
		PolicyWeight:   1.0,
	}
}

func (conf Config) IsValid() bool {
	return conf.ObservationLen >= 1 &&
		conf.ActionSpace >= 2 &&
		conf.Hidden >= 1 &&
		conf.BatchSize >= 1 &&
		conf.PolicyWeight >= 0
}
