package service

import (
	"context"

	"github.com/smallbiznis/teamspace/internal/workspace/domain"
	"gorm.io/gorm"
)

// faultRepo fails selected writes, including those made through WithTx.
type faultRepo struct {
	domain.Repository

	insertMemberErr error
	upsertMemberErr error
}

func withFaults(f faultRepo) harnessOption {
	return withRepoWrapper(func(r domain.Repository) domain.Repository {
		f.Repository = r
		return &f
	})
}

func (r *faultRepo) WithTx(tx *gorm.DB) domain.Repository {
	return &faultRepo{
		Repository:      r.Repository.WithTx(tx),
		insertMemberErr: r.insertMemberErr,
		upsertMemberErr: r.upsertMemberErr,
	}
}

func (r *faultRepo) InsertMember(ctx context.Context, member domain.Member) error {
	if r.insertMemberErr != nil {
		return r.insertMemberErr
	}
	return r.Repository.InsertMember(ctx, member)
}

func (r *faultRepo) UpsertMember(ctx context.Context, member domain.Member) error {
	if r.upsertMemberErr != nil {
		return r.upsertMemberErr
	}
	return r.Repository.UpsertMember(ctx, member)
}
