package mq

import "errors"

// ErrNoChannel — канал ещё не открыт или потерян до reconnect.
var ErrNoChannel = errors.New("no amqp channel available")
