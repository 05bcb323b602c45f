package export

import "errors"

var errNoPrivateKey = errors.New("form is encrypted but no private key was configured")
