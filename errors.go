package layers

import "errors"

// Structural precondition failures. Stack operations report these through
// boolean returns; the sentinels exist for the assembly and inpainting
// paths that return errors.
var (
	// ErrLastLayer is returned when an operation would leave a stack with
	// no ordinary layers.
	ErrLastLayer = errors.New("layers: stack requires at least one layer")

	// ErrLayerSizeMismatch is returned when a layer's buffer does not match
	// the stack's canvas dimensions.
	ErrLayerSizeMismatch = errors.New("layers: layer size does not match canvas")

	// ErrMaskLayerOp is returned when a structural operation targets the
	// reserved inpaint-mask layer.
	ErrMaskLayerOp = errors.New("layers: operation not permitted on mask layer")

	// ErrNoImage is returned by the inpainting subsystem when no base
	// image can be produced.
	ErrNoImage = errors.New("layers: no image available")

	// ErrMaskEmpty is returned by the inpainting subsystem when nothing has
	// been painted into the mask.
	ErrMaskEmpty = errors.New("layers: no mask painted")
)
