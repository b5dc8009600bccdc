package services

// Notifier shows single short messages to the user.
type Notifier interface {
	Info(msg string)
	Success(msg string)
	Error(msg string)
}

// Renderer applies wall patches to whatever displays the wall. Patches for
// one wall arrive in order and must be applied in order.
type Renderer interface {
	Apply(wall string, patches []Patch)
}
