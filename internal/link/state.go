package link

// AnchorEvent representa el tipo de evento de ancla enviado al proxy
type AnchorEvent int

const (
	AnchorEventUnknown  AnchorEvent = iota
	AnchorEventRegister             // anchor_register: true
	AnchorEventRemove               // anchor_remove: true
)
