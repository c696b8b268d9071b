package thumbgrid

import "errors"

var (
	// ErrClosed is returned by operations on a closed Loader.
	ErrClosed = errors.New("thumbgrid: loader closed")

	// ErrNilStore is returned when neither a store nor a decoder is configured.
	ErrNilStore = errors.New("thumbgrid: nil blob store")

	// ErrNilDataSource is returned when the data source is nil.
	ErrNilDataSource = errors.New("thumbgrid: nil data source")

	// ErrNilGeometry is returned when the geometry is nil.
	ErrNilGeometry = errors.New("thumbgrid: nil geometry")

	// ErrInvalidWindow is returned for a negative settle or batch window.
	ErrInvalidWindow = errors.New("thumbgrid: invalid window")

	// ErrInvalidCapacity is returned for a non-positive cache capacity or factor.
	ErrInvalidCapacity = errors.New("thumbgrid: invalid cache capacity")
)
