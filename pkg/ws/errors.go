package ws

import "errors"

var errSlowConsumer = errors.New("ws: send buffer full")
