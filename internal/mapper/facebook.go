package mapper

import "github.com/imranmit2020/pro-login-flow-sub000/internal/model"

// NewFacebookMapper builds the Messenger normalizer. Every configured page id is
// a business sender.
func NewFacebookMapper(pages model.BusinessIdentity) SocialMapper {
	return &graphMapper{platform: model.PlatformFacebook, identity: pages}
}
