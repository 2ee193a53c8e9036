// Package handlers implements the command translations (C4): RegisterAll
// installs one handler per command id, and each handler decodes its
// command's payload, resolves its guest handles through the object table,
// drives the backend, and reconciles the table with whatever the backend
// returned
// (SPEC_FULL.md §4.4). Grounded on the teacher's nodefs op handlers
// (decode request, look up inode, call FileSystem, translate result)
// generalized from FUSE's single object kind (inode) to the Vulkan
// object taxonomy in package objtable.
package handlers

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/venus-hv/gpucore/backend"
	"github.com/venus-hv/gpucore/fence"
	"github.com/venus-hv/gpucore/gpuerr"
	"github.com/venus-hv/gpucore/objtable"
)

// Deps bundles everything a handler needs beyond the decoded payload.
// One Deps is shared by every registered handler.
type Deps struct {
	Backend backend.Backend
	Objects *objtable.Table
	Fences  *fence.Publisher
	Log     *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// handle resolves guestID to its host handle, requiring it be of typ.
func (d Deps) handle(guestID uint64, typ objtable.ObjectType) (backend.Handle, error) {
	h, ok := d.Objects.GetTyped(guestID, typ)
	if !ok {
		return 0, fmt.Errorf("%w: guest id %#x is not a live %s", gpuerr.ErrInvalidHandle, guestID, typ)
	}
	return h, nil
}

// handles resolves a batch of guest ids to host handles of typ, failing
// on the first miss.
func (d Deps) handles(guestIDs []uint64, typ objtable.ObjectType) ([]backend.Handle, error) {
	out := make([]backend.Handle, len(guestIDs))
	for i, id := range guestIDs {
		h, err := d.handle(id, typ)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// add records a newly created host object under guestID, rejecting a
// reused id already bound to the same type (SPEC_FULL.md §4.3's
// uniqueness invariant).
func (d Deps) add(guestID uint64, h backend.Handle, typ objtable.ObjectType) error {
	if _, ok := d.Objects.GetTyped(guestID, typ); ok {
		return fmt.Errorf("%w: guest id %#x already bound as %s", gpuerr.ErrInvalidState, guestID, typ)
	}
	return d.Objects.Add(guestID, h, typ)
}

// backendErr wraps a native backend error as gpuerr.BackendFailure with
// status code 0, since Backend methods report no integer status
// (SPEC_FULL.md §7). A nil error stays nil.
func backendErr(err error) error {
	if err == nil {
		return nil
	}
	return gpuerr.BackendFailure(0, err)
}
