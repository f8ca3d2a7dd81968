package drawsheet

import "errors"

// ErrExternalService is returned when the vision service cannot be reached,
// answers with a non-2xx status, or the call times out.
var ErrExternalService = errors.New("external model service failure")

// ErrModelResponse is returned when the service answered but produced no
// usable text.
var ErrModelResponse = errors.New("model returned no usable text")

// ErrMalformedResponse is returned when the model's text cannot be
// interpreted as the expected datasheet structure. Callers treat it as
// "all requested fields still missing for this round".
var ErrMalformedResponse = errors.New("model response is not valid datasheet JSON")

var ErrNoSchema = errors.New("no schema registered for equipment")
var ErrNoEquipment = errors.New("no equipment ids provided")
var ErrNoLocator = errors.New("image locator is required")
var ErrEmptyImage = errors.New("drawing image is empty")
