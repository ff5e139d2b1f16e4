package flow

import "context"

// ShareIn re-emits every value of src into a new Replay, starting at once.
//
// The returned done channel is closed when the background goroutine stops,
// which happens on ctx cancellation or when src is closed. src is closed on
// exit.
func ShareIn[T any](ctx context.Context, src *Subscription[T], cfg ReplayConfig) (
	r *Replay[T], done <-chan struct{}, err error,
) {
	r, err = NewReplay[T](cfg)
	if err != nil {
		return nil, nil, err
	}
	doneCh := make(chan struct{})

	go runShareIn(ctx, src, r, doneCh)

	return r, doneCh, nil
}

func runShareIn[T any](
	ctx context.Context,
	src *Subscription[T],
	r *Replay[T],
	done chan<- struct{},
) {
	defer close(done)
	defer src.Close()

	for {
		v, err := src.Next(ctx)
		if err != nil {
			return
		}
		if err := r.Emit(ctx, v); err != nil {
			return
		}
	}
}
