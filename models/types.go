package models

import (
	"strings"
	"time"
)

// Follow states
const (
	FollowingStatusFollowing     = "FOLLOWING"
	FollowingStatusStopFollowing = "STOP_FOLLOWING"
	FollowingStatusFollowIgnore  = "FOLLOW_IGNORE"
)

// Star states
const (
	StarStatusStarred    = "STARRED"
	StarStatusNotStarred = "NOT_STARRED"
)

// Kinds of ballot item
const (
	KindCandidate = "CANDIDATE"
	KindMeasure   = "MEASURE"
	KindOffice    = "OFFICE"
)

// AddressTypeBallot is the address used to look up a voter's ballot
const AddressTypeBallot = "B"

// Interface status flags (bitmask on voter.interface_status_flags)
const (
	SupportOpposeModalShown           int64 = 1
	BallotIntroModalShown             int64 = 2
	BallotIntroIssuesCompleted        int64 = 4
	BallotIntroOrganizationsCompleted int64 = 8
	BallotIntroPositionsCompleted     int64 = 16
	BallotIntroFriendsCompleted       int64 = 32
	BallotIntroShareCompleted         int64 = 64
	BallotIntroVoteCompleted          int64 = 128
)

// Notification settings flags (bitmask on voter.notification_settings_flags)
const (
	NotificationNewsletterOptIn                 int64 = 1
	NotificationFriendRequestsEmail             int64 = 2
	NotificationFriendRequestsSMS               int64 = 4
	NotificationSuggestedFriendsEmail           int64 = 8
	NotificationSuggestedFriendsSMS             int64 = 16
	NotificationFriendOpinionsYourBallotEmail   int64 = 32
	NotificationFriendOpinionsYourBallotSMS     int64 = 64
	NotificationFriendOpinionsOtherRegions      int64 = 128
	NotificationFriendOpinionsOtherRegionsEmail int64 = 256
	NotificationFriendOpinionsOtherRegionsSMS   int64 = 512
	NotificationVoterDailySummaryEmail          int64 = 1024
	NotificationVoterDailySummarySMS            int64 = 2048
)

// NotificationSettingsFlagsDefault is what a new voter starts with
const NotificationSettingsFlagsDefault = NotificationNewsletterOptIn |
	NotificationFriendRequestsEmail |
	NotificationSuggestedFriendsEmail |
	NotificationFriendOpinionsYourBallotEmail |
	NotificationFriendOpinionsOtherRegions |
	NotificationFriendOpinionsOtherRegionsEmail |
	NotificationVoterDailySummaryEmail

// Analytics action constants (subset used by the web app)
const (
	ActionVoterGuideVisit           = 1
	ActionOrganizationFollow        = 3
	ActionOrganizationAutoFollow    = 4
	ActionIssueFollow               = 5
	ActionBallotVisit               = 6
	ActionPositionTaken             = 7
	ActionWelcomeEntry              = 10
	ActionFriendEntry               = 11
	ActionWelcomeVisit              = 12
	ActionOrganizationFollowIgnore  = 13
	ActionOrganizationStopFollowing = 14
	ActionAccountPage               = 26
)

// Domain types

type Voter struct {
	ID                        int64     `json:"voter_id"`
	WeVoteID                  string    `json:"we_vote_id"`
	FirstName                 string    `json:"first_name"`
	MiddleName                string    `json:"middle_name"`
	LastName                  string    `json:"last_name"`
	Email                     string    `json:"email"`
	PrimaryEmailWeVoteID      string    `json:"primary_email_we_vote_id"`
	EmailOwnershipIsVerified  bool      `json:"email_ownership_is_verified"`
	NormalizedSMSPhoneNumber  string    `json:"normalized_sms_phone_number"`
	PrimarySMSWeVoteID        string    `json:"primary_sms_we_vote_id"`
	SMSOwnershipIsVerified    bool      `json:"sms_ownership_is_verified"`
	DataToPreserve            bool      `json:"has_data_to_preserve"`
	IsActive                  bool      `json:"is_active"`
	InterfaceStatusFlags      int64     `json:"interface_status_flags"`
	NotificationSettingsFlags int64     `json:"notification_settings_flags"`
	ProfileImageURL           string    `json:"voter_photo_url_large"`
	DateJoined                time.Time `json:"date_joined"`
	DateLastChanged           time.Time `json:"date_last_changed"`
}

// FullName joins the non-empty name parts
func (v Voter) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{v.FirstName, v.MiddleName, v.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// IsSignedIn reports whether the voter owns a verified sign-in identity
func (v Voter) IsSignedIn() bool {
	return v.EmailOwnershipIsVerified || v.SMSOwnershipIsVerified
}

type VoterDeviceLink struct {
	ID                               int64
	VoterDeviceID                    string
	VoterID                          int64
	StateCode                        string
	SecretCode                       string
	DateSecretCodeGenerated          *time.Time
	SecretCodeFailedTriesForThisCode int
	SecretCodeFailedTriesAllTime     int
	EmailSecretKey                   string
	SMSSecretKey                     string
	DateLastChanged                  time.Time
}

type EmailAddress struct {
	WeVoteID                 string `json:"email_we_vote_id"`
	VoterWeVoteID            string `json:"voter_we_vote_id"`
	NormalizedEmailAddress   string `json:"normalized_email_address"`
	EmailOwnershipIsVerified bool   `json:"email_ownership_is_verified"`
	PrimaryEmailAddress      bool   `json:"primary_email_address"`
	SecretKey                string `json:"-"`
	Deleted                  bool   `json:"-"`
}

type SMSPhoneNumber struct {
	WeVoteID                 string `json:"sms_we_vote_id"`
	VoterWeVoteID            string `json:"voter_we_vote_id"`
	NormalizedSMSPhoneNumber string `json:"normalized_sms_phone_number"`
	SMSOwnershipIsVerified   bool   `json:"sms_ownership_is_verified"`
	PrimarySMSPhoneNumber    bool   `json:"primary_sms_phone_number"`
	SecretKey                string `json:"-"`
	Deleted                  bool   `json:"-"`
}

type VoterAddress struct {
	AddressType           string `json:"address_type"`
	TextForMapSearch      string `json:"text_for_map_search"`
	NormalizedLine1       string `json:"normalized_line1"`
	NormalizedCity        string `json:"normalized_city"`
	NormalizedState       string `json:"normalized_state"`
	NormalizedZip         string `json:"normalized_zip"`
	VoterEnteredAddress   bool   `json:"voter_entered_address"`
	GoogleCivicElectionID int64  `json:"google_civic_election_id"`
}

type Organization struct {
	ID            int64  `json:"organization_id"`
	WeVoteID      string `json:"organization_we_vote_id"`
	Name          string `json:"organization_name"`
	Website       string `json:"organization_website"`
	TwitterHandle string `json:"organization_twitter_handle"`
	Email         string `json:"organization_email"`
	Type          string `json:"organization_type"`
}

type StarStatus struct {
	BallotItemWeVoteID string `json:"ballot_item_we_vote_id"`
	KindOfBallotItem   string `json:"kind_of_ballot_item"`
	IsStarred          bool   `json:"is_starred"`
}

// AnalyticsAction is both the stored row and the published event
type AnalyticsAction struct {
	ActionConstant        int       `json:"action_constant"`
	VoterWeVoteID         string    `json:"voter_we_vote_id"`
	GoogleCivicElectionID int64     `json:"google_civic_election_id"`
	OrganizationWeVoteID  string    `json:"organization_we_vote_id"`
	BallotItemWeVoteID    string    `json:"ballot_item_we_vote_id"`
	DateAsInteger         int       `json:"date_as_integer"`
	IPHash                string    `json:"-"`
	UserAgent             string    `json:"user_agent"`
	IsBot                 bool      `json:"is_bot"`
	ExactTime             time.Time `json:"exact_time"`
}

// Response types
//
// Every API response carries Base. Business outcomes live in Status;
// the HTTP status code is always 200.

type Base struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// Outcome exposes success and status to middleware that only sees interface{}
func (b Base) Outcome() (bool, string) {
	return b.Success, b.Status
}

type DeviceIDGenerateResponse struct {
	Base
	VoterDeviceID string `json:"voter_device_id"`
}

type VoterCreateResponse struct {
	Base
	VoterDeviceID string `json:"voter_device_id"`
	VoterID       int64  `json:"voter_id"`
	VoterWeVoteID string `json:"voter_we_vote_id"`
}

type VoterRetrieveResponse struct {
	Base
	VoterDeviceID              string    `json:"voter_device_id"`
	VoterFound                 bool      `json:"voter_found"`
	WeVoteID                   string    `json:"we_vote_id"`
	FirstName                  string    `json:"first_name"`
	MiddleName                 string    `json:"middle_name"`
	LastName                   string    `json:"last_name"`
	FullName                   string    `json:"full_name"`
	Email                      string    `json:"email"`
	HasValidEmail              bool      `json:"has_valid_email"`
	HasEmailWithVerifiedOwner  bool      `json:"has_email_with_verified_ownership"`
	HasVerifiedSMS             bool      `json:"has_verified_sms"`
	IsSignedIn                 bool      `json:"is_signed_in"`
	SignedInWithEmail          bool      `json:"signed_in_with_email"`
	SignedInWithSMSPhoneNumber bool      `json:"signed_in_with_sms_phone_number"`
	HasDataToPreserve          bool      `json:"has_data_to_preserve"`
	InterfaceStatusFlags       int64     `json:"interface_status_flags"`
	NotificationSettingsFlags  int64     `json:"notification_settings_flags"`
	TextForMapSearch           string    `json:"text_for_map_search"`
	VoterPhotoURLLarge         string    `json:"voter_photo_url_large"`
	DateJoined                 time.Time `json:"date_joined"`
}

type VoterCountResponse struct {
	Base
	VoterCount int64 `json:"voter_count"`
}

type VoterSignOutResponse struct {
	Base
	VoterDeviceID string `json:"voter_device_id"`
}

type VoterUpdateResponse struct {
	Base
	VoterDeviceID             string `json:"voter_device_id"`
	VoterUpdated              bool   `json:"voter_updated"`
	FirstName                 string `json:"first_name"`
	MiddleName                string `json:"middle_name"`
	LastName                  string `json:"last_name"`
	InterfaceStatusFlags      int64  `json:"interface_status_flags"`
	NotificationSettingsFlags int64  `json:"notification_settings_flags"`
}

type VoterAddressResponse struct {
	Base
	VoterDeviceID string `json:"voter_device_id"`
	AddressFound  bool   `json:"address_found"`
	Address       string `json:"address"`
	VoterAddress
}

type VoterEmailAddressSaveResponse struct {
	Base
	VoterDeviceID                              string         `json:"voter_device_id"`
	TextForEmailAddress                        string         `json:"text_for_email_address"`
	EmailAddressWeVoteID                       string         `json:"email_address_we_vote_id"`
	EmailAddressSavedWeVoteID                  string         `json:"email_address_saved_we_vote_id"`
	EmailAddressCreated                        bool           `json:"email_address_created"`
	EmailAddressDeleted                        bool           `json:"email_address_deleted"`
	EmailAddressNotValid                       bool           `json:"email_address_not_valid"`
	EmailAddressAlreadyOwnedByOtherVoter       bool           `json:"email_address_already_owned_by_other_voter"`
	EmailAddressAlreadyOwnedByThisVoter        bool           `json:"email_address_already_owned_by_this_voter"`
	MakePrimaryEmail                           bool           `json:"make_primary_email"`
	VerificationEmailSent                      bool           `json:"verification_email_sent"`
	SignInCodeEmailSent                        bool           `json:"sign_in_code_email_sent"`
	SecretCodeSystemLockedForThisVoterDeviceID bool           `json:"secret_code_system_locked_for_this_voter_device_id"`
	EmailAddressList                           []EmailAddress `json:"email_address_list"`
}

type VoterEmailAddressRetrieveResponse struct {
	Base
	VoterDeviceID    string         `json:"voter_device_id"`
	EmailAddressList []EmailAddress `json:"email_address_list"`
}

type VoterEmailAddressVerifyResponse struct {
	Base
	VoterDeviceID                    string `json:"voter_device_id"`
	EmailAddressFound                bool   `json:"email_address_found"`
	EmailOwnershipIsVerified         bool   `json:"email_ownership_is_verified"`
	EmailSecretKeyBelongsToThisVoter bool   `json:"email_secret_key_belongs_to_this_voter"`
}

type VoterEmailAddressSignInResponse struct {
	Base
	VoterDeviceID                    string `json:"voter_device_id"`
	EmailAddressFound                bool   `json:"email_address_found"`
	EmailOwnershipIsVerified         bool   `json:"email_ownership_is_verified"`
	EmailSecretKeyBelongsToThisVoter bool   `json:"email_secret_key_belongs_to_this_voter"`
	EmailSignInAttempted             bool   `json:"email_sign_in_attempted"`
	YesPleaseMergeAccounts           bool   `json:"yes_please_merge_accounts"`
	VoterWeVoteIDFromSecretKey       string `json:"voter_we_vote_id_from_secret_key"`
	VoterMergeTwoAccountsAttempted   bool   `json:"voter_merge_two_accounts_attempted"`
}

type VoterSMSPhoneNumberSaveResponse struct {
	Base
	VoterDeviceID                              string           `json:"voter_device_id"`
	SMSPhoneNumber                             string           `json:"sms_phone_number"`
	SMSPhoneNumberWeVoteID                     string           `json:"sms_phone_number_we_vote_id"`
	SMSPhoneNumberCreated                      bool             `json:"sms_phone_number_created"`
	SMSPhoneNumberDeleted                      bool             `json:"sms_phone_number_deleted"`
	SMSPhoneNumberNotValid                     bool             `json:"sms_phone_number_not_valid"`
	SMSPhoneNumberAlreadyOwnedByOtherVoter     bool             `json:"sms_phone_number_already_owned_by_other_voter"`
	SMSPhoneNumberAlreadyOwnedByThisVoter      bool             `json:"sms_phone_number_already_owned_by_this_voter"`
	MakePrimarySMSPhoneNumber                  bool             `json:"make_primary_sms_phone_number"`
	SignInCodeSMSSent                          bool             `json:"sign_in_code_sms_sent"`
	SecretCodeSystemLockedForThisVoterDeviceID bool             `json:"secret_code_system_locked_for_this_voter_device_id"`
	SMSPhoneNumberList                         []SMSPhoneNumber `json:"sms_phone_number_list"`
}

type VoterSMSPhoneNumberRetrieveResponse struct {
	Base
	VoterDeviceID      string           `json:"voter_device_id"`
	SMSPhoneNumberList []SMSPhoneNumber `json:"sms_phone_number_list"`
}

type VoterVerifySecretCodeResponse struct {
	Base
	VoterDeviceID                              string `json:"voter_device_id"`
	IncorrectSecretCodeEntered                 bool   `json:"incorrect_secret_code_entered"`
	NumberOfTriesRemainingForThisCode          int    `json:"number_of_tries_remaining_for_this_code"`
	SecretCodeSystemLockedForThisVoterDeviceID bool   `json:"secret_code_system_locked_for_this_voter_device_id"`
	SecretCodeVerified                         bool   `json:"secret_code_verified"`
	VoterMustRequestNewCode                    bool   `json:"voter_must_request_new_code"`
}

type VoterMergeTwoAccountsResponse struct {
	Base
	VoterDeviceID        string `json:"voter_device_id"`
	CurrentVoterWeVoteID string `json:"current_voter_we_vote_id"`
	MergedIntoWeVoteID   string `json:"merged_into_voter_we_vote_id"`
}

type VoterSplitIntoTwoAccountsResponse struct {
	Base
	VoterDeviceID          string `json:"voter_device_id"`
	SplitFromVoterWeVoteID string `json:"split_from_voter_we_vote_id"`
	SplitToVoterWeVoteID   string `json:"split_to_voter_we_vote_id"`
}

type OrganizationSaveResponse struct {
	Base
	NewOrganizationCreated bool `json:"new_organization_created"`
	Organization
}

type OrganizationRetrieveResponse struct {
	Base
	Organization
}

type OrganizationCountResponse struct {
	Base
	OrganizationCount int64 `json:"organization_count"`
}

type OrganizationFollowResponse struct {
	Base
	VoterDeviceID        string `json:"voter_device_id"`
	OrganizationID       int64  `json:"organization_id"`
	OrganizationWeVoteID string `json:"organization_we_vote_id"`
	FollowingStatus      string `json:"following_status"`
}

type OrganizationsFollowedRetrieveResponse struct {
	Base
	VoterDeviceID    string         `json:"voter_device_id"`
	OrganizationList []Organization `json:"organization_list"`
}

type StarResponse struct {
	Base
	VoterDeviceID string `json:"voter_device_id"`
	StarStatus
}

type AllStarsStatusRetrieveResponse struct {
	Base
	VoterDeviceID string       `json:"voter_device_id"`
	StarList      []StarStatus `json:"star_list"`
}

type SaveAnalyticsActionResponse struct {
	Base
	VoterDeviceID         string `json:"voter_device_id"`
	ActionConstant        int    `json:"action_constant"`
	IsSignedIn            bool   `json:"is_signed_in"`
	GoogleCivicElectionID int64  `json:"google_civic_election_id"`
	DateAsInteger         int    `json:"date_as_integer"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
