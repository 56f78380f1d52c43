package ws

type Hubs struct {
	Monitoring *MonitoringHub
	Student    *StudentHub
}
