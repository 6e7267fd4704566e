// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import (
	"fmt"

	"github.com/dotnetmd/clrmeta/errs"
)

func newInvalidCodedIndexError(kind CodedIndexKind, tok Token) error {
	return errs.NewToken(errs.InvalidCodedIndex, uint32(tok),
		fmt.Sprintf("table %s cannot be represented in coded-index category %d", TableIndexToString(int(tok.Table())), kind))
}
