// Package delivery decides, for every notification newly added by a scan,
// which side channels fire: a native system notification, a sound, and an
// expiration email.
//
// Platform facilities are injected as capability interfaces
// (PermissionProvider, SystemNotifier, SoundEmitter, EmailSender, Clock);
// the subpackages hold the production bindings.
package delivery
