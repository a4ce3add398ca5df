package validators

type RegisterUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"displayName" binding:"required,min=2,max=50"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	DisplayName        *string `json:"displayName,omitempty" binding:"omitempty,min=2,max=50"`
	Bio                *string `json:"bio,omitempty" binding:"omitempty,max=300"`
	EmailNotifications *bool   `json:"emailNotifications,omitempty"`
	DigestEmails       *bool   `json:"digestEmails,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,nefield=OldPassword"`
}

type StartConversationRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type SendMessageRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}
