package link

// AnchorInfo es la vista estática de un ancla que se envía al proxy
type AnchorInfo struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Event     AnchorEvent
}
