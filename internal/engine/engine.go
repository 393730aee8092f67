package engine

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/operation"
	"github.com/PolarWolf314/keysmith/internal/oplog"
	"github.com/PolarWolf314/keysmith/internal/progress"
	"github.com/PolarWolf314/keysmith/internal/utils"
)

// KeyEngine applies change-sets to key material. It may return a Pending
// result naming one missing secret instead of failing.
type KeyEngine interface {
	// Create generates a new key ring described by changes.
	Create(ctx context.Context, changes *keys.ChangeSet, input *operation.CryptoInput, sink progress.Sink) operation.Result[*keys.KeyRing]

	// Modify applies changes to a copy of ring. ring itself is never modified.
	Modify(ctx context.Context, ring *keys.KeyRing, input *operation.CryptoInput, changes *keys.ChangeSet, sink progress.Sink) operation.Result[*keys.KeyRing]
}

// Ed25519Engine is a KeyEngine built on ed25519 keys whose private halves
// are sealed with argon2id and secretbox.
type Ed25519Engine struct {
	KDF keys.KDFParams

	// Now is the clock used for creation and expiry checks.
	Now func() time.Time
}

// New creates an engine that seals new secrets with params.
func New(params keys.KDFParams) *Ed25519Engine {
	return &Ed25519Engine{KDF: params, Now: time.Now}
}

func (e *Ed25519Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// BindingMessage is what the master key signs to bind a user id.
func BindingMessage(userID string, masterPublicKey []byte) []byte {
	msg := make([]byte, 0, 32+len(userID)+len(masterPublicKey))
	msg = append(msg, "keysmith-user-id-binding\x00"...)
	msg = append(msg, userID...)
	msg = append(msg, 0)
	msg = append(msg, masterPublicKey...)
	return msg
}

func invalid[T any](log *oplog.Log, err error) operation.Result[T] {
	log.Add(oplog.KindEngineErrorInvalid, 1, err.Error())
	return operation.Failure[T](log, err)
}

func failInternal[T any](log *oplog.Log, err error) operation.Result[T] {
	log.Add(oplog.KindEngineErrorInternal, 1, err.Error())
	return operation.Failure[T](log, fmt.Errorf("%w: %v", kerrors.ErrEngineFailure, err))
}

func cancelled[T any](log *oplog.Log) operation.Result[T] {
	log.Add(oplog.KindOperationCancelled, 0)
	return operation.Cancelled[T](log)
}

// Create generates a new key ring. The first requested subkey becomes
// the master key; the input is not needed since nothing is unlocked.
func (e *Ed25519Engine) Create(ctx context.Context, changes *keys.ChangeSet, _ *operation.CryptoInput, sink progress.Sink) operation.Result[*keys.KeyRing] {
	if sink == nil {
		sink = progress.Discard
	}
	log := oplog.New()
	log.Add(oplog.KindCreate, 0)
	sink.Report(0)

	if changes == nil || !changes.IsCreate() {
		return invalid[*keys.KeyRing](log, fmt.Errorf("%w: not a create request", kerrors.ErrInvalidChangeSet))
	}
	if err := changes.Validate(); err != nil {
		return invalid[*keys.KeyRing](log, err)
	}

	now := e.now()
	primary := changes.ChangePrimaryUserID
	if primary == "" {
		primary = changes.AddUserIDs[0]
	}
	if !contains(changes.AddUserIDs, primary) {
		return invalid[*keys.KeyRing](log, fmt.Errorf("%w: primary user id %q is not being added", kerrors.ErrInvalidChangeSet, primary))
	}
	for i, add := range changes.AddSubKeys {
		if err := e.checkSubKeyAdd(add, i == 0, now); err != nil {
			return invalid[*keys.KeyRing](log, err)
		}
	}

	passphrase := changes.NewUnlock.Secret()
	defer utils.ZeroBytes(passphrase)

	ring := &keys.KeyRing{Created: now, Modified: now}
	var masterPriv ed25519.PrivateKey
	defer func() { utils.ZeroBytes(masterPriv) }()

	for i, add := range changes.AddSubKeys {
		if ctx.Err() != nil {
			return cancelled[*keys.KeyRing](log)
		}
		sk, priv, err := e.generate(add, passphrase, now)
		if err != nil {
			return failInternal[*keys.KeyRing](log, err)
		}
		if i == 0 {
			ring.MasterKeyID = sk.ID
			masterPriv = priv
		} else {
			utils.ZeroBytes(priv)
		}
		ring.SubKeys = append(ring.SubKeys, sk)
		log.Add(oplog.KindCreateSubKey, 1, sk.ID, sk.Flags)
		sink.Report((i + 1) * 80 / len(changes.AddSubKeys))
	}

	masterPub := ring.Master().PublicKey
	for _, uid := range changes.AddUserIDs {
		ring.UserIDs = append(ring.UserIDs, keys.UserID{
			Value:   uid,
			Primary: uid == primary,
			Binding: ed25519.Sign(masterPriv, BindingMessage(uid, masterPub)),
		})
		log.Add(oplog.KindCreateUserID, 1, uid)
	}

	if len(passphrase) == 0 {
		log.Add(oplog.KindCreateUnprotected, 1)
	}

	log.Add(oplog.KindCreateSuccess, 0, ring.MasterKeyID)
	sink.Report(100)
	return operation.Success(ring, log)
}

func (e *Ed25519Engine) checkSubKeyAdd(add keys.SubKeyAdd, master bool, now time.Time) error {
	if !master && add.Flags.Has(keys.FlagCertify) {
		return fmt.Errorf("%w: only the master key may certify", kerrors.ErrInvalidChangeSet)
	}
	if add.Expiry != nil && !add.Expiry.After(now) {
		return fmt.Errorf("%w: expiry %s is in the past", kerrors.ErrInvalidChangeSet, add.Expiry.Format(time.RFC3339))
	}
	return nil
}

func (e *Ed25519Engine) generate(add keys.SubKeyAdd, passphrase []byte, now time.Time) (keys.SubKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return keys.SubKey{}, nil, fmt.Errorf("generating key: %w", err)
	}
	sealed, err := Seal(priv.Seed(), passphrase, e.KDF)
	if err != nil {
		utils.ZeroBytes(priv)
		return keys.SubKey{}, nil, fmt.Errorf("sealing key: %w", err)
	}
	sk := keys.SubKey{
		ID:        keys.KeyIDFromPublicKey(pub),
		Flags:     add.Flags,
		Created:   now,
		PublicKey: pub,
		Secret:    sealed,
	}
	if add.Expiry != nil {
		exp := add.Expiry.UTC()
		sk.Expiry = &exp
	}
	return sk, priv, nil
}

// unlocked holds decrypted seeds for the duration of one Modify call.
type unlocked struct {
	seeds      map[keys.KeyID][]byte
	passphrase []byte
}

func (u *unlocked) wipe() {
	for id, seed := range u.seeds {
		utils.ZeroBytes(seed)
		delete(u.seeds, id)
	}
	utils.ZeroBytes(u.passphrase)
}

// unlock opens one subkey. It returns a pending reason when the secret is
// missing, or ErrBadPassphrase when the supplied one does not fit.
func (e *Ed25519Engine) unlock(master keys.KeyID, sk *keys.SubKey, input *operation.CryptoInput, log *oplog.Log) ([]byte, []byte, *operation.PendingReason, error) {
	log.Add(oplog.KindModifyUnlocking, 1, sk.ID)
	if sk.Secret.Unprotected {
		seed, err := Open(sk.Secret, nil)
		return seed, nil, nil, err
	}

	ref := operation.SecretRef{Key: master, SubKey: sk.ID}
	pending := &operation.PendingReason{Input: operation.NeedPassphrase, Key: master, SubKey: sk.ID}

	passphrase, ok := input.Passphrase(ref)
	if !ok {
		log.Add(oplog.KindModifyPendingPassphrase, 1, sk.ID)
		return nil, nil, pending, nil
	}
	if input.HasPassphrase(ref) {
		input.Consume(ref)
	} else {
		input.Consume(operation.SecretRef{Key: master, SubKey: master})
	}

	seed, err := Open(sk.Secret, passphrase)
	if errors.Is(err, kerrors.ErrBadPassphrase) {
		if sk.ID != master && !input.HasPassphrase(ref) {
			// The master passphrase was tried as a fallback and did not fit.
			log.Add(oplog.KindModifyPendingPassphrase, 1, sk.ID)
			return nil, nil, pending, nil
		}
		log.Add(oplog.KindModifyErrorBadPassphrase, 1, sk.ID)
		return nil, nil, nil, err
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return seed, append([]byte(nil), passphrase...), nil, nil
}

// Modify applies changes to a copy of ring. Secrets are resolved in a
// fixed order, master key first, then subkeys in ring order; the first
// missing one yields a Pending result.
func (e *Ed25519Engine) Modify(ctx context.Context, ring *keys.KeyRing, input *operation.CryptoInput, changes *keys.ChangeSet, sink progress.Sink) operation.Result[*keys.KeyRing] {
	if sink == nil {
		sink = progress.Discard
	}
	log := oplog.New()
	sink.Report(0)

	master := ring.Master()
	if master == nil {
		return failInternal[*keys.KeyRing](log, errors.New("empty key ring"))
	}
	masterID := ring.MasterKeyID
	log.Add(oplog.KindModify, 0, masterID)

	if changes == nil || changes.IsCreate() || *changes.MasterKeyID != masterID {
		return invalid[*keys.KeyRing](log, fmt.Errorf("%w: change-set is not for key %s", kerrors.ErrInvalidChangeSet, masterID))
	}
	if err := changes.Validate(); err != nil {
		return invalid[*keys.KeyRing](log, err)
	}
	if master.Revoked {
		log.Add(oplog.KindModifyErrorRevoked, 1)
		return operation.Failure[*keys.KeyRing](log, kerrors.ErrKeyRevoked)
	}
	now := e.now()
	if err := e.checkReferences(ring, changes, now, log); err != nil {
		return operation.Failure[*keys.KeyRing](log, err)
	}

	// Unlock everything this change-set needs before touching the copy.
	u := &unlocked{seeds: make(map[keys.KeyID][]byte)}
	defer u.wipe()

	// A token master authorizes the whole change-set with one signature
	// over its digest; it cannot sign per-uid bindings.
	var certify func(msg []byte) []byte
	var authorization []byte
	if master.OnToken {
		digest := changes.Digest()
		ref := operation.SecretRef{Key: masterID, SubKey: masterID}
		sig, ok := input.TokenSignature(ref, digest)
		if !ok {
			log.Add(oplog.KindModifyPendingToken, 1, masterID)
			return operation.Pending[*keys.KeyRing](log, operation.PendingReason{
				Input: operation.NeedTokenSignature, Key: masterID, SubKey: masterID, Digest: digest,
			})
		}
		input.Consume(ref)
		if !ed25519.Verify(master.PublicKey, digest, sig) {
			log.Add(oplog.KindModifyErrorBadToken, 1, masterID)
			return operation.Failure[*keys.KeyRing](log, fmt.Errorf("%w: %w", kerrors.ErrEngineFailure, kerrors.ErrBadTokenSignature))
		}
		authorization = sig
		if p, ok := input.Passphrase(ref); ok {
			u.passphrase = append([]byte(nil), p...)
		}
	} else {
		seed, passphrase, pending, err := e.unlock(masterID, master, input, log)
		if pending != nil {
			return operation.Pending[*keys.KeyRing](log, *pending)
		}
		if err != nil {
			return operation.Failure[*keys.KeyRing](log, fmt.Errorf("%w: %w", kerrors.ErrEngineFailure, err))
		}
		u.seeds[masterID] = seed
		u.passphrase = passphrase
		priv := ed25519.NewKeyFromSeed(seed)
		certify = func(msg []byte) []byte { return ed25519.Sign(priv, msg) }
	}

	if changes.NewUnlock != nil {
		for i := 1; i < len(ring.SubKeys); i++ {
			sk := &ring.SubKeys[i]
			if sk.OnToken || sk.Secret.IsEmpty() {
				continue
			}
			seed, _, pending, err := e.unlock(masterID, sk, input, log)
			if pending != nil {
				return operation.Pending[*keys.KeyRing](log, *pending)
			}
			if err != nil {
				return operation.Failure[*keys.KeyRing](log, fmt.Errorf("%w: %w", kerrors.ErrEngineFailure, err))
			}
			u.seeds[sk.ID] = seed
		}
	}
	sink.Report(20)

	if ctx.Err() != nil {
		return cancelled[*keys.KeyRing](log)
	}

	out := ring.Clone()
	e.applyUserIDs(out, changes, certify, authorization, log)
	sink.Report(40)

	// New subkeys take the new unlock secret, or keep the current one.
	passphrase := u.passphrase
	if changes.NewUnlock != nil {
		passphrase = changes.NewUnlock.Secret()
		defer utils.ZeroBytes(passphrase)
	}
	for _, add := range changes.AddSubKeys {
		if ctx.Err() != nil {
			return cancelled[*keys.KeyRing](log)
		}
		sk, priv, err := e.generate(add, passphrase, now)
		if err != nil {
			return failInternal[*keys.KeyRing](log, err)
		}
		utils.ZeroBytes(priv)
		out.SubKeys = append(out.SubKeys, sk)
		log.Add(oplog.KindModifySubKeyAdd, 1, sk.ID, sk.Flags)
	}
	for _, ch := range changes.ChangeSubKeys {
		sk, _ := out.SubKey(ch.ID)
		switch {
		case ch.NoExpiry:
			sk.Expiry = nil
		case ch.Expiry != nil:
			exp := ch.Expiry.UTC()
			sk.Expiry = &exp
		}
		log.Add(oplog.KindModifySubKeyChange, 1, ch.ID)
	}
	for _, id := range changes.RevokeSubKeys {
		sk, _ := out.SubKey(id)
		sk.Revoked = true
		log.Add(oplog.KindModifySubKeyRevoke, 1, id)
	}
	sink.Report(70)

	if changes.NewUnlock != nil {
		log.Add(oplog.KindModifyPassphrase, 1)
		for i := range out.SubKeys {
			sk := &out.SubKeys[i]
			seed, ok := u.seeds[sk.ID]
			if !ok {
				continue
			}
			sealed, err := Seal(seed, passphrase, e.KDF)
			if err != nil {
				return failInternal[*keys.KeyRing](log, err)
			}
			sk.Secret = sealed
		}
	}
	sink.Report(90)

	out.Modified = now
	log.Add(oplog.KindModifySuccess, 0)
	sink.Report(100)
	return operation.Success(out, log)
}

// checkReferences rejects change-sets that name user ids or subkeys the ring
// does not have. It runs before any secret is requested.
func (e *Ed25519Engine) checkReferences(ring *keys.KeyRing, changes *keys.ChangeSet, now time.Time, log *oplog.Log) error {
	for _, uid := range changes.AddUserIDs {
		if _, exists := ring.UserID(uid); exists {
			log.Add(oplog.KindEngineErrorInvalid, 1, fmt.Sprintf("user id %q already exists", uid))
			return fmt.Errorf("%w: user id %q already exists", kerrors.ErrInvalidChangeSet, uid)
		}
	}

	revoking := make(map[string]bool, len(changes.RevokeUserIDs))
	for _, value := range changes.RevokeUserIDs {
		uid, ok := ring.UserID(value)
		if !ok {
			log.Add(oplog.KindModifyErrorUnknownUserID, 1, value)
			return fmt.Errorf("%w: %q", kerrors.ErrUnknownUserID, value)
		}
		if uid.Revoked {
			log.Add(oplog.KindEngineErrorInvalid, 1, fmt.Sprintf("user id %q is already revoked", value))
			return fmt.Errorf("%w: user id %q is already revoked", kerrors.ErrInvalidChangeSet, value)
		}
		revoking[value] = true
	}

	if p := changes.ChangePrimaryUserID; p != "" {
		if revoking[p] {
			log.Add(oplog.KindEngineErrorInvalid, 1, fmt.Sprintf("primary user id %q is being revoked", p))
			return fmt.Errorf("%w: primary user id %q is being revoked", kerrors.ErrInvalidChangeSet, p)
		}
		uid, ok := ring.UserID(p)
		if !ok && !contains(changes.AddUserIDs, p) {
			log.Add(oplog.KindModifyErrorUnknownUserID, 1, p)
			return fmt.Errorf("%w: %q", kerrors.ErrUnknownUserID, p)
		}
		if ok && uid.Revoked {
			log.Add(oplog.KindEngineErrorInvalid, 1, fmt.Sprintf("user id %q is revoked", p))
			return fmt.Errorf("%w: user id %q is revoked", kerrors.ErrInvalidChangeSet, p)
		}
	}

	remaining := len(changes.AddUserIDs)
	for _, uid := range ring.UserIDs {
		if !uid.Revoked && !revoking[uid.Value] {
			remaining++
		}
	}
	if remaining == 0 {
		log.Add(oplog.KindEngineErrorInvalid, 1, "cannot revoke every user id")
		return fmt.Errorf("%w: cannot revoke every user id", kerrors.ErrInvalidChangeSet)
	}

	for _, add := range changes.AddSubKeys {
		if err := e.checkSubKeyAdd(add, false, now); err != nil {
			log.Add(oplog.KindEngineErrorInvalid, 1, err.Error())
			return err
		}
	}
	for _, ch := range changes.ChangeSubKeys {
		sk, ok := ring.SubKey(ch.ID)
		if !ok {
			log.Add(oplog.KindModifyErrorUnknownSubKey, 1, ch.ID)
			return fmt.Errorf("%w: %s", kerrors.ErrUnknownSubKey, ch.ID)
		}
		if sk.Revoked {
			log.Add(oplog.KindEngineErrorInvalid, 1, fmt.Sprintf("subkey %s is revoked", ch.ID))
			return fmt.Errorf("%w: subkey %s is revoked", kerrors.ErrInvalidChangeSet, ch.ID)
		}
		if ch.Expiry != nil && !ch.Expiry.After(now) {
			log.Add(oplog.KindEngineErrorInvalid, 1, fmt.Sprintf("expiry for subkey %s is in the past", ch.ID))
			return fmt.Errorf("%w: expiry for subkey %s is in the past", kerrors.ErrInvalidChangeSet, ch.ID)
		}
	}
	for _, id := range changes.RevokeSubKeys {
		if _, ok := ring.SubKey(id); !ok {
			log.Add(oplog.KindModifyErrorUnknownSubKey, 1, id)
			return fmt.Errorf("%w: %s", kerrors.ErrUnknownSubKey, id)
		}
	}
	return nil
}

// applyUserIDs adds, promotes and revokes user ids on out. New user ids get
// a binding from certify, or carry authorization when certify is nil.
func (e *Ed25519Engine) applyUserIDs(out *keys.KeyRing, changes *keys.ChangeSet, certify func([]byte) []byte, authorization []byte, log *oplog.Log) {
	masterPub := out.Master().PublicKey
	for _, value := range changes.AddUserIDs {
		uid := keys.UserID{Value: value}
		if certify != nil {
			uid.Binding = certify(BindingMessage(value, masterPub))
		} else {
			uid.Authorization = append([]byte(nil), authorization...)
		}
		out.UserIDs = append(out.UserIDs, uid)
		log.Add(oplog.KindModifyUserIDAdd, 1, value)
	}
	if p := changes.ChangePrimaryUserID; p != "" {
		for i := range out.UserIDs {
			out.UserIDs[i].Primary = out.UserIDs[i].Value == p
		}
		log.Add(oplog.KindModifyUserIDPrimary, 1, p)
	}
	for _, value := range changes.RevokeUserIDs {
		uid, _ := out.UserID(value)
		uid.Revoked = true
		uid.Primary = false
		log.Add(oplog.KindModifyUserIDRevoke, 1, value)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
