package mapper

import "github.com/imranmit2020/pro-login-flow-sub000/internal/model"

// NewInstagramMapper builds the Instagram Direct normalizer. Instagram has exactly
// one business account, so only that id is treated as outbound.
func NewInstagramMapper(businessAccountID, displayName string) SocialMapper {
	return &graphMapper{
		platform: model.PlatformInstagram,
		identity: model.NewBusinessIdentity().With(businessAccountID, displayName),
	}
}
