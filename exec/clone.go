// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"fmt"
	"reflect"

	"github.com/grailbio/base/errors"
	"github.com/pwakit/kernelpool"
	"github.com/pwakit/kernelpool/table"
)

// Clone returns one copy of the template kernel per partition. The
// i'th returned kernel owns parts[i] and has partition ID i. The
// template itself is never handed to a worker.
func Clone(template kernelpool.Kernel, parts []*table.Table) ([]kernelpool.Kernel, error) {
	if template == nil {
		return nil, errors.E(errors.Invalid, "exec.Clone: nil kernel template")
	}
	kernels := make([]kernelpool.Kernel, len(parts))
	for i, part := range parts {
		k, err := template.CloneWith(kernelpool.Partition{ID: i, Data: part})
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("exec.Clone: partition %d", i), err)
		}
		if k == nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("exec.Clone: partition %d: %T.CloneWith returned a nil kernel", i, template))
		}
		if reflect.ValueOf(k).Kind() == reflect.Ptr && k == template {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("exec.Clone: partition %d: %T.CloneWith returned the template", i, template))
		}
		kernels[i] = k
	}
	return kernels, nil
}
