// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain and response types for the API.

# Response Convention

Every response embeds Base:

	{"success": true, "status": "VOTER_FOUND", ...}

Status is a SCREAMING_SNAKE_CASE code naming the branch the handler
took. Handlers always answer HTTP 200; clients branch on success and
status. Some statuses carry a suffix ("STAR_ON_CANDIDATE CREATE").

# Domain Types

  - Voter: account row, with FullName and IsSignedIn helpers
  - VoterDeviceLink: device id session plus secret code counters
  - EmailAddress, SMSPhoneNumber: sign-in identities
  - VoterAddress: ballot address
  - Organization
  - StarStatus
  - AnalyticsAction: stored row and published event

# Constants

Follow states:

	FollowingStatusFollowing     = "FOLLOWING"
	FollowingStatusStopFollowing = "STOP_FOLLOWING"
	FollowingStatusFollowIgnore  = "FOLLOW_IGNORE"

Star states and ballot item kinds:

	StarStatusStarred, StarStatusNotStarred
	KindCandidate, KindMeasure, KindOffice

Bitmask flags for voter.interface_status_flags and
voter.notification_settings_flags. New voters start with
NotificationSettingsFlagsDefault.
*/
package models
