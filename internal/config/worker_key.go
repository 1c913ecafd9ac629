package config

// WorkerKeyStruct names the event bus topics used by background workers.
type WorkerKeyStruct struct {
	SessionEventsTopic string
	MonitorRelayGroup  string
}

var WorkerKey = &WorkerKeyStruct{
	SessionEventsTopic: "examhall.sessions",
	MonitorRelayGroup:  "examhall-monitor",
}
