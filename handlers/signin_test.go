// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wevote/wevote-server/models"
	"github.com/wevote/wevote-server/testutil"
)

func (e *testEnv) verifyCode(t *testing.T, voterDeviceID string, params url.Values) models.VoterVerifySecretCodeResponse {
	t.Helper()
	var resp models.VoterVerifySecretCodeResponse
	call(t, NewSignInHandler(e.Deps).VerifySecretCode, voterDeviceID, params, &resp)
	return resp
}

// sendEmailCode asks for a sign-in code for email and returns it
func (e *testEnv) sendEmailCode(t *testing.T, voterDeviceID, email string) string {
	t.Helper()
	resp := e.saveEmail(t, voterDeviceID, url.Values{
		"text_for_email_address":  {email},
		"send_sign_in_code_email": {"true"},
	})
	require.True(t, resp.Success, resp.Status)
	require.True(t, resp.SignInCodeEmailSent)
	return e.lastCode(t, voterDeviceID)
}

// signInWithEmailCode leaves voterDeviceID signed in as the verified owner of email
func (e *testEnv) signInWithEmailCode(t *testing.T, voterDeviceID, email string) models.VoterVerifySecretCodeResponse {
	t.Helper()
	code := e.sendEmailCode(t, voterDeviceID, email)
	resp := e.verifyCode(t, voterDeviceID, url.Values{"secret_code": {code}})
	require.True(t, resp.Success, resp.Status)
	return resp
}

func TestVoterVerifySecretCode(t *testing.T) {
	env := newTestEnv(t)

	t.Run("code goes out by email", func(t *testing.T) {
		voterDeviceID, created := env.newVoter(t)
		code := env.sendEmailCode(t, voterDeviceID, "code@example.com")
		assert.Len(t, code, 6)

		msg, ok := env.sender.LastEmail()
		require.True(t, ok)
		assert.Equal(t, "code@example.com", msg.To)
		assert.Contains(t, msg.Subject, code)

		entry := env.emailEntry(t, created.VoterWeVoteID, "code@example.com")
		assert.Equal(t, entry.SecretKey, env.deviceLink(t, voterDeviceID).EmailSecretKey)
	})

	t.Run("correct code signs in", func(t *testing.T) {
		voterDeviceID, created := env.newVoter(t)
		code := env.sendEmailCode(t, voterDeviceID, "right@example.com")

		resp := env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {code}})
		require.True(t, resp.Success, resp.Status)
		assert.Equal(t, "VALID_SECRET_CODE_FOUND EMAIL_ADDRESS_VERIFIED", resp.Status)
		assert.True(t, resp.SecretCodeVerified)
		assert.False(t, resp.IncorrectSecretCodeEntered)

		v := env.voter(t, voterDeviceID)
		assert.True(t, v.EmailOwnershipIsVerified)
		assert.Equal(t, "right@example.com", v.Email)

		entry := env.emailEntry(t, created.VoterWeVoteID, "right@example.com")
		assert.True(t, entry.Verified)
		assert.Empty(t, entry.SecretKey)

		link := env.deviceLink(t, voterDeviceID)
		assert.Empty(t, link.SecretCode)
		assert.Empty(t, link.EmailSecretKey)

		// The code is single use
		resp = env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {code}})
		assert.False(t, resp.Success)
		assert.Equal(t, "VOTER_DEVICE_LINK_MISSING_SECRET_CODE", resp.Status)
	})

	t.Run("wrong code counts down and persists", func(t *testing.T) {
		voterDeviceID, _ := env.newVoter(t)
		code := env.sendEmailCode(t, voterDeviceID, "wrong@example.com")
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}

		for i := 1; i <= MaxTriesPerSecretCode; i++ {
			resp := env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {wrong}})
			assert.False(t, resp.Success)
			assert.Equal(t, "SECRET_CODE_DOES_NOT_MATCH", resp.Status)
			assert.True(t, resp.IncorrectSecretCodeEntered)
			assert.Equal(t, MaxTriesPerSecretCode-i, resp.NumberOfTriesRemainingForThisCode)
			assert.Equal(t, i == MaxTriesPerSecretCode, resp.VoterMustRequestNewCode)
		}
		assert.Equal(t, MaxTriesPerSecretCode, env.deviceLink(t, voterDeviceID).SecretCodeFailedTriesAllTime)

		resp := env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {code}})
		assert.False(t, resp.Success)
		assert.Equal(t, "THIS_CODE_HAS_EXCEEDED_ALLOWED_TRIES", resp.Status)

		// Asking again issues a fresh code that works
		fresh := env.sendEmailCode(t, voterDeviceID, "wrong@example.com")
		resp = env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {fresh}})
		require.True(t, resp.Success, resp.Status)
	})

	t.Run("expired code", func(t *testing.T) {
		voterDeviceID, _ := env.newVoter(t)
		code := env.sendEmailCode(t, voterDeviceID, "late@example.com")

		_, err := env.DB.Exec(`UPDATE voter_device_link SET date_secret_code_generated = $1 WHERE voter_device_id = $2`,
			time.Now().UTC().Add(-SecretCodeLifetime-time.Hour), voterDeviceID)
		require.NoError(t, err)

		resp := env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {code}})
		assert.False(t, resp.Success)
		assert.Equal(t, "SECRET_CODE_HAS_EXPIRED", resp.Status)
		assert.False(t, env.voter(t, voterDeviceID).IsSignedIn())
	})

	t.Run("device locks after too many failures", func(t *testing.T) {
		voterDeviceID, _ := env.newVoter(t)
		code := env.sendEmailCode(t, voterDeviceID, "locked@example.com")
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}

		_, err := env.DB.Exec(`UPDATE voter_device_link SET secret_code_failed_tries_all_time = $1 WHERE voter_device_id = $2`,
			MaxTriesAllTime-1, voterDeviceID)
		require.NoError(t, err)

		resp := env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {wrong}})
		assert.False(t, resp.Success)
		assert.True(t, resp.SecretCodeSystemLockedForThisVoterDeviceID)

		resp = env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {code}})
		assert.False(t, resp.Success)
		assert.Equal(t, "SECRET_CODE_SYSTEM_LOCKED-VERIFY_CODE", resp.Status)

		saved := env.saveEmail(t, voterDeviceID, url.Values{
			"text_for_email_address":  {"locked@example.com"},
			"send_sign_in_code_email": {"true"},
		})
		assert.False(t, saved.Success)
		assert.Contains(t, saved.Status, "SECRET_CODE_SYSTEM_LOCKED")
		assert.True(t, saved.SecretCodeSystemLockedForThisVoterDeviceID)
		assert.False(t, saved.SignInCodeEmailSent)
	})

	t.Run("code on a second device merges into the owner", func(t *testing.T) {
		ownerDeviceID, owner := env.newVoter(t)
		env.signInWithEmailCode(t, ownerDeviceID, "shared@example.com")

		guestDeviceID, guest := env.newVoter(t)
		var star models.StarResponse
		call(t, NewStarHandler(env.Deps).OnSave, guestDeviceID, url.Values{
			"kind_of_ballot_item":    {models.KindMeasure},
			"ballot_item_we_vote_id": {"wv3vmeas1"},
		}, &star)
		require.True(t, star.Success)

		var before models.VoterRetrieveResponse
		call(t, NewVoterHandler(env.Deps).Retrieve, guestDeviceID, nil, &before)
		require.Equal(t, guest.VoterWeVoteID, before.WeVoteID)

		saved := env.saveEmail(t, guestDeviceID, url.Values{
			"text_for_email_address":  {"shared@example.com"},
			"send_sign_in_code_email": {"true"},
		})
		require.True(t, saved.Success, saved.Status)
		assert.True(t, saved.EmailAddressAlreadyOwnedByOtherVoter)

		resp := env.verifyCode(t, guestDeviceID, url.Values{"secret_code": {env.lastCode(t, guestDeviceID)}})
		require.True(t, resp.Success, resp.Status)
		assert.Equal(t, "VALID_SECRET_CODE_FOUND VOTERS_MERGED", resp.Status)

		var after models.VoterRetrieveResponse
		call(t, NewVoterHandler(env.Deps).Retrieve, guestDeviceID, nil, &after)
		assert.Equal(t, owner.VoterWeVoteID, after.WeVoteID)
		assert.True(t, after.SignedInWithEmail)

		var stars models.AllStarsStatusRetrieveResponse
		call(t, NewStarHandler(env.Deps).AllStatusRetrieve, ownerDeviceID, nil, &stars)
		require.Len(t, stars.StarList, 1, "stars follow the merge")
		assert.Equal(t, "wv3vmeas1", stars.StarList[0].BallotItemWeVoteID)

		var emails models.VoterEmailAddressRetrieveResponse
		call(t, NewEmailHandler(env.Deps).Retrieve, ownerDeviceID, nil, &emails)
		assert.Len(t, emails.EmailAddressList, 1, "duplicate address is dropped")

		gone, err := getVoterByID(context.Background(), env.DB, guest.VoterID)
		require.NoError(t, err)
		assert.False(t, gone.IsActive)
	})
}

func TestSecretCodeCountersSurviveResend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wrongFor := func(code string) string {
		if code == "000000" {
			return "111111"
		}
		return "000000"
	}

	t.Run("resend keeps the failed try", func(t *testing.T) {
		voterDeviceID, _ := env.newVoter(t)
		code := env.sendEmailCode(t, voterDeviceID, "resend@example.com")

		resp := env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {wrongFor(code)}})
		require.True(t, resp.IncorrectSecretCodeEntered)

		again := env.sendEmailCode(t, voterDeviceID, "resend@example.com")
		assert.Equal(t, code, again, "live code is reused")

		link := env.deviceLink(t, voterDeviceID)
		assert.Equal(t, 1, link.SecretCodeFailedTriesForThisCode)
		assert.Equal(t, 1, link.SecretCodeFailedTriesAllTime)
	})

	t.Run("guess landing between read and write of a send", func(t *testing.T) {
		voterDeviceID, created := env.newVoter(t)
		env.sendEmailCode(t, voterDeviceID, "interleave@example.com")
		entry := env.emailEntry(t, created.VoterWeVoteID, "interleave@example.com")

		// The sender read the link before the guess committed
		stale := env.deviceLink(t, voterDeviceID)
		_, _, err := recordFailedSecretCodeTry(ctx, env.DB, voterDeviceID)
		require.NoError(t, err)

		require.NoError(t, storeSecretCode(ctx, env.DB, voterDeviceID, stale, false, emailKind.linkKeyColumn, entry.SecretKey))
		link := env.deviceLink(t, voterDeviceID)
		assert.Equal(t, 1, link.SecretCodeFailedTriesForThisCode)
		assert.Equal(t, 1, link.SecretCodeFailedTriesAllTime)
		assert.Equal(t, entry.SecretKey, link.EmailSecretKey)

		// A fresh code restarts only the per-code count
		_, fresh, err := issueSecretCode(&stale, time.Now().UTC().Add(SecretCodeLifetime+time.Minute))
		require.NoError(t, err)
		require.True(t, fresh)
		require.NoError(t, storeSecretCode(ctx, env.DB, voterDeviceID, stale, fresh, emailKind.linkKeyColumn, entry.SecretKey))
		link = env.deviceLink(t, voterDeviceID)
		assert.Zero(t, link.SecretCodeFailedTriesForThisCode)
		assert.Equal(t, 1, link.SecretCodeFailedTriesAllTime)
		assert.Equal(t, stale.SecretCode, link.SecretCode)
	})

	t.Run("tries remaining reflects stored counters", func(t *testing.T) {
		voterDeviceID, _ := env.newVoter(t)
		code := env.sendEmailCode(t, voterDeviceID, "counted@example.com")

		// A concurrent guess already committed
		_, _, err := recordFailedSecretCodeTry(ctx, env.DB, voterDeviceID)
		require.NoError(t, err)

		resp := env.verifyCode(t, voterDeviceID, url.Values{"secret_code": {wrongFor(code)}})
		assert.Equal(t, MaxTriesPerSecretCode-2, resp.NumberOfTriesRemainingForThisCode)
		assert.Equal(t, 2, env.deviceLink(t, voterDeviceID).SecretCodeFailedTriesAllTime)
	})
}

func TestVoterSMSPhoneNumber(t *testing.T) {
	env := newTestEnv(t)
	h := NewSMSHandler(env.Deps)
	voterDeviceID, created := env.newVoter(t)

	save := func(params url.Values) models.VoterSMSPhoneNumberSaveResponse {
		var resp models.VoterSMSPhoneNumberSaveResponse
		call(t, h.Save, voterDeviceID, params, &resp)
		return resp
	}

	t.Run("missing", func(t *testing.T) {
		resp := save(nil)
		assert.False(t, resp.Success)
		assert.Equal(t, "VOTER_SMS_PHONE_NUMBER_SAVE_MISSING_SMS_PHONE_NUMBER", resp.Status)
	})

	t.Run("invalid", func(t *testing.T) {
		resp := save(url.Values{"sms_phone_number": {"555-01"}})
		assert.False(t, resp.Success)
		assert.Equal(t, "SMS_PHONE_NUMBER_NOT_VALID", resp.Status)
		assert.True(t, resp.SMSPhoneNumberNotValid)
	})

	t.Run("retrieve empty", func(t *testing.T) {
		var resp models.VoterSMSPhoneNumberRetrieveResponse
		call(t, h.Retrieve, voterDeviceID, nil, &resp)
		require.True(t, resp.Success)
		assert.Equal(t, "NO_SMS_PHONE_NUMBER_LIST_RETRIEVED", resp.Status)
	})

	t.Run("save and sign in by text", func(t *testing.T) {
		resp := save(url.Values{
			"sms_phone_number":      {"(510) 555-0100"},
			"send_sign_in_code_sms": {"true"},
		})
		require.True(t, resp.Success, resp.Status)
		assert.True(t, resp.SMSPhoneNumberCreated)
		assert.True(t, resp.SignInCodeSMSSent)
		assert.Equal(t, "+15105550100", resp.SMSPhoneNumber)

		text, ok := env.sender.LastSMS()
		require.True(t, ok)
		assert.Equal(t, "+15105550100", text.To)
		code := env.lastCode(t, voterDeviceID)
		assert.Contains(t, text.Body, code)

		verified := env.verifyCode(t, voterDeviceID, url.Values{
			"secret_code":                   {code},
			"code_sent_to_sms_phone_number": {"true"},
		})
		require.True(t, verified.Success, verified.Status)
		assert.Equal(t, "VALID_SECRET_CODE_FOUND SMS_PHONE_NUMBER_VERIFIED", verified.Status)

		v := env.voter(t, voterDeviceID)
		assert.True(t, v.SMSOwnershipIsVerified)
		assert.Equal(t, "+15105550100", v.NormalizedSMSPhoneNumber)
		assert.True(t, v.IsSignedIn())

		var list models.VoterSMSPhoneNumberRetrieveResponse
		call(t, h.Retrieve, voterDeviceID, nil, &list)
		require.True(t, list.Success)
		assert.Equal(t, "SMS_PHONE_NUMBER_LIST_RETRIEVED", list.Status)
		require.Len(t, list.SMSPhoneNumberList, 1)
		assert.True(t, list.SMSPhoneNumberList[0].SMSOwnershipIsVerified)
		assert.True(t, list.SMSPhoneNumberList[0].PrimarySMSPhoneNumber)
		assert.Equal(t, created.VoterWeVoteID, list.SMSPhoneNumberList[0].VoterWeVoteID)
	})

	t.Run("make primary and delete by we vote id", func(t *testing.T) {
		var list models.VoterSMSPhoneNumberRetrieveResponse
		call(t, h.Retrieve, voterDeviceID, nil, &list)
		require.Len(t, list.SMSPhoneNumberList, 1)
		weVoteID := list.SMSPhoneNumberList[0].WeVoteID

		resp := save(url.Values{
			"sms_phone_number_we_vote_id":   {weVoteID},
			"make_primary_sms_phone_number": {"true"},
		})
		require.True(t, resp.Success, resp.Status)
		assert.True(t, resp.MakePrimarySMSPhoneNumber)
		assert.True(t, resp.SMSPhoneNumberAlreadyOwnedByThisVoter)

		resp = save(url.Values{
			"sms_phone_number_we_vote_id": {weVoteID},
			"delete_sms":                  {"true"},
		})
		require.True(t, resp.Success, resp.Status)
		assert.True(t, resp.SMSPhoneNumberDeleted)
		assert.Empty(t, resp.SMSPhoneNumberList)
		assert.False(t, env.voter(t, voterDeviceID).SMSOwnershipIsVerified)
	})
}

func TestVoterMergeTwoAccounts(t *testing.T) {
	env := newTestEnv(t)
	h := NewSignInHandler(env.Deps)

	merge := func(voterDeviceID string, params url.Values) models.VoterMergeTwoAccountsResponse {
		var resp models.VoterMergeTwoAccountsResponse
		call(t, h.MergeTwoAccounts, voterDeviceID, params, &resp)
		return resp
	}

	// Owner verifies by link so the secret key stays on the entry
	ownerDeviceID, owner := env.newVoter(t)
	require.True(t, env.saveEmail(t, ownerDeviceID, url.Values{"text_for_email_address": {"merge@example.com"}}).Success)
	key := env.emailEntry(t, owner.VoterWeVoteID, "merge@example.com").SecretKey
	var verified models.VoterEmailAddressVerifyResponse
	call(t, NewEmailHandler(env.Deps).Verify, ownerDeviceID, url.Values{"email_secret_key": {key}}, &verified)
	require.True(t, verified.Success, verified.Status)

	t.Run("missing key", func(t *testing.T) {
		resp := merge(ownerDeviceID, nil)
		assert.False(t, resp.Success)
		assert.Equal(t, "VOTER_MERGE_TWO_ACCOUNTS_SECRET_KEY_MISSING", resp.Status)
	})

	t.Run("unknown key", func(t *testing.T) {
		resp := merge(ownerDeviceID, url.Values{"sms_secret_key": {"nope"}})
		assert.False(t, resp.Success)
		assert.Equal(t, "SMS_PHONE_NUMBER_NOT_FOUND_FROM_SECRET_KEY", resp.Status)
	})

	t.Run("same voter", func(t *testing.T) {
		resp := merge(ownerDeviceID, url.Values{"email_secret_key": {key}})
		require.True(t, resp.Success)
		assert.Equal(t, "CURRENT_VOTER_AND_OWNER_ARE_THE_SAME", resp.Status)
		assert.Equal(t, owner.VoterWeVoteID, resp.MergedIntoWeVoteID)
	})

	t.Run("no verified owner", func(t *testing.T) {
		loneDeviceID, lone := env.newVoter(t)
		require.True(t, env.saveEmail(t, loneDeviceID, url.Values{"text_for_email_address": {"lone@example.com"}}).Success)
		loneKey := env.emailEntry(t, lone.VoterWeVoteID, "lone@example.com").SecretKey

		otherDeviceID, _ := env.newVoter(t)
		resp := merge(otherDeviceID, url.Values{"email_secret_key": {loneKey}})
		assert.False(t, resp.Success)
		assert.Equal(t, "VERIFIED_OWNER_NOT_FOUND", resp.Status)
	})

	t.Run("merge", func(t *testing.T) {
		guestDeviceID, guest := env.newVoter(t)
		var updated models.VoterUpdateResponse
		call(t, NewVoterHandler(env.Deps).Update, guestDeviceID, url.Values{
			"first_name":          {"Guest"},
			"flag_integer_to_set": {"8"},
		}, &updated)
		require.True(t, updated.VoterUpdated)

		resp := merge(guestDeviceID, url.Values{"email_secret_key": {key}})
		require.True(t, resp.Success, resp.Status)
		assert.Equal(t, "VOTERS_MERGED", resp.Status)
		assert.Equal(t, guest.VoterWeVoteID, resp.CurrentVoterWeVoteID)
		assert.Equal(t, owner.VoterWeVoteID, resp.MergedIntoWeVoteID)

		v := env.voter(t, guestDeviceID)
		assert.Equal(t, owner.VoterID, v.ID)
		assert.Equal(t, "Guest", v.FirstName, "names fill in when the owner has none")
		assert.Equal(t, models.BallotIntroOrganizationsCompleted, v.InterfaceStatusFlags&models.BallotIntroOrganizationsCompleted)
		assert.True(t, v.EmailOwnershipIsVerified)
	})
}

func TestVoterSplitIntoTwoAccounts(t *testing.T) {
	env := newTestEnv(t)
	h := NewSignInHandler(env.Deps)

	split := func(voterDeviceID string, params url.Values) models.VoterSplitIntoTwoAccountsResponse {
		var resp models.VoterSplitIntoTwoAccountsResponse
		call(t, h.SplitIntoTwoAccounts, voterDeviceID, params, &resp)
		return resp
	}
	confirm := url.Values{"split_off_sign_in_identities": {"true"}}

	t.Run("not confirmed", func(t *testing.T) {
		voterDeviceID, _ := env.newVoter(t)
		resp := split(voterDeviceID, nil)
		assert.False(t, resp.Success)
		assert.Equal(t, "SPLIT_NOT_CONFIRMED", resp.Status)
	})

	t.Run("nothing to split", func(t *testing.T) {
		voterDeviceID, _ := env.newVoter(t)
		resp := split(voterDeviceID, confirm)
		assert.False(t, resp.Success)
		assert.Equal(t, "NO_SIGN_IN_IDENTITIES_TO_SPLIT", resp.Status)
	})

	t.Run("split", func(t *testing.T) {
		voterDeviceID, created := env.newVoter(t)
		env.signInWithEmailCode(t, voterDeviceID, "split@example.com")

		resp := split(voterDeviceID, confirm)
		require.True(t, resp.Success, resp.Status)
		assert.Equal(t, "VOTER_SPLIT_INTO_TWO_ACCOUNTS", resp.Status)
		assert.Equal(t, created.VoterWeVoteID, resp.SplitFromVoterWeVoteID)
		assert.NotEqual(t, created.VoterWeVoteID, resp.SplitToVoterWeVoteID)

		current := env.voter(t, voterDeviceID)
		assert.Equal(t, created.VoterID, current.ID, "device stays with the original voter")
		assert.False(t, current.IsSignedIn())
		assert.Empty(t, current.Email)

		other, err := getVoterByWeVoteID(context.Background(), env.DB, resp.SplitToVoterWeVoteID)
		require.NoError(t, err)
		assert.True(t, other.EmailOwnershipIsVerified)
		assert.Equal(t, "split@example.com", other.Email)

		var emails models.VoterEmailAddressRetrieveResponse
		call(t, NewEmailHandler(env.Deps).Retrieve, voterDeviceID, nil, &emails)
		assert.Empty(t, emails.EmailAddressList)
	})
}

func TestDeviceLinkCacheFollowsMerge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	h := NewVoterHandler(env.Deps)

	ownerDeviceID, owner := env.newVoter(t)
	env.signInWithEmailCode(t, ownerDeviceID, "cached@example.com")

	guestDeviceID, guest := env.newVoter(t)
	secondDeviceID := testutil.NewDeviceID(t)
	require.NoError(t, createDeviceLink(ctx, env.DB, secondDeviceID, guest.VoterID))

	var retrieved models.VoterRetrieveResponse
	for _, id := range []string{guestDeviceID, secondDeviceID} {
		call(t, h.Retrieve, id, nil, &retrieved)
		require.Equal(t, guest.VoterWeVoteID, retrieved.WeVoteID)
	}

	saved := env.saveEmail(t, guestDeviceID, url.Values{
		"text_for_email_address":  {"cached@example.com"},
		"send_sign_in_code_email": {"true"},
	})
	require.True(t, saved.Success, saved.Status)
	resp := env.verifyCode(t, guestDeviceID, url.Values{"secret_code": {env.lastCode(t, guestDeviceID)}})
	require.Equal(t, "VALID_SECRET_CODE_FOUND VOTERS_MERGED", resp.Status)

	t.Run("every moved device is evicted", func(t *testing.T) {
		for _, id := range []string{guestDeviceID, secondDeviceID} {
			_, ok, err := env.lru.Get(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok, id)
		}
		call(t, h.Retrieve, secondDeviceID, nil, &retrieved)
		assert.Equal(t, owner.VoterWeVoteID, retrieved.WeVoteID)
	})

	t.Run("entry cached for the merged-away voter heals", func(t *testing.T) {
		// A lookup that read the link before the merge committed
		require.NoError(t, env.lru.Set(ctx, secondDeviceID, guest.VoterID))

		call(t, h.Retrieve, secondDeviceID, nil, &retrieved)
		assert.Equal(t, owner.VoterWeVoteID, retrieved.WeVoteID)

		voterID, ok, err := env.lru.Get(ctx, secondDeviceID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, owner.VoterID, voterID)
	})

	t.Run("entry cached for a missing voter heals", func(t *testing.T) {
		require.NoError(t, env.lru.Set(ctx, guestDeviceID, 987654))

		call(t, h.Retrieve, guestDeviceID, nil, &retrieved)
		assert.Equal(t, owner.VoterWeVoteID, retrieved.WeVoteID)
	})
}
