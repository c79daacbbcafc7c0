package credentials

import (
	"context"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

// RetrieveProfile busca el perfil por URL de usuario (se canonicaliza).
func (s *Service) RetrieveProfile(ctx context.Context, me string) (*repository.Profile, error) {
	key, err := repository.CanonicalURL(me)
	if err != nil {
		return nil, err
	}
	rec, err := s.tables.Profiles.RetrieveOne(ctx, *store.Where("me", store.OpEq, key))
	if err != nil {
		return nil, err
	}
	return repository.ProfileFromRecord(rec)
}

// StoreProfile hace upsert last-write-wins del perfil completo: los campos
// vacíos de p quedan vacíos en el store.
func (s *Service) StoreProfile(ctx context.Context, p repository.Profile) (*repository.Profile, error) {
	key, err := repository.CanonicalURL(p.Me)
	if err != nil {
		return nil, err
	}
	p.Me = key

	if err := s.replace(ctx, s.tables.Profiles, store.Profiles, key, p.ToRecord()); err != nil {
		return nil, err
	}
	s.log(ctx, "store_profile", store.Profiles.Table).Debug("profile stored", logger.Me(key))
	return &p, nil
}

// RegisterClient registra un client nuevo; ErrAlreadyExists si client_id ya existe.
func (s *Service) RegisterClient(ctx context.Context, c repository.ClientApplication) (*repository.ClientApplication, error) {
	if err := s.prepareClient(&c); err != nil {
		return nil, err
	}
	if _, err := s.tables.Clients.StoreOne(ctx, c.ToRecord()); err != nil {
		return nil, err
	}
	s.log(ctx, "register_client", store.Clients.Table).Info("client registered", logger.ClientID(c.ClientID))
	return &c, nil
}

// ReregisterClient reemplaza explícitamente el registro de un client (o lo crea).
func (s *Service) ReregisterClient(ctx context.Context, c repository.ClientApplication) (*repository.ClientApplication, error) {
	if err := s.prepareClient(&c); err != nil {
		return nil, err
	}
	if err := s.replace(ctx, s.tables.Clients, store.Clients, c.ClientID, c.ToRecord()); err != nil {
		return nil, err
	}
	s.log(ctx, "reregister_client", store.Clients.Table).Info("client re-registered", logger.ClientID(c.ClientID))
	return &c, nil
}

// RetrieveClient busca un client por client_id (se canonicaliza).
func (s *Service) RetrieveClient(ctx context.Context, clientID string) (*repository.ClientApplication, error) {
	key, err := repository.CanonicalURL(clientID)
	if err != nil {
		return nil, err
	}
	rec, err := s.tables.Clients.RetrieveOne(ctx, *store.Where("client_id", store.OpEq, key))
	if err != nil {
		return nil, err
	}
	return repository.ClientApplicationFromRecord(rec)
}

func (s *Service) prepareClient(c *repository.ClientApplication) error {
	key, err := repository.CanonicalURL(c.ClientID)
	if err != nil {
		return err
	}
	c.ClientID = key
	if c.RegisteredAt == 0 {
		c.RegisteredAt = s.now().Unix()
	}
	return c.Validate()
}

// replace sobrescribe el registro completo de key: insert y, si ya existe,
// update con todas las columnas (las ausentes en rec quedan en nil).
// No es atómico entre procesos; el último writer gana.
func (s *Service) replace(ctx context.Context, t store.Table, schema store.Schema, key string, rec store.Record) error {
	_, err := t.StoreOne(ctx, rec)
	if err == nil || !repository.IsAlreadyExists(err) {
		return err
	}
	set := store.Record{}
	for _, col := range schema.ColumnNames() {
		if col == schema.Key {
			continue
		}
		set[col] = rec[col] // nil borra el campo
	}
	updated, err := t.UpdateMany(ctx, *store.Where(schema.Key, store.OpEq, key).WithSet(set))
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		// borrado entre el insert y el update: reintentar el insert una vez
		_, err = t.StoreOne(ctx, rec)
	}
	return err
}
